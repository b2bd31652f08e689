package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the dispatcher,
// session registry, crypto layer, and file sink. Use these consistently
// so log lines stay greppable and machine-parseable regardless of which
// component emitted them.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Protocol
	KeyOpcode    = "opcode"
	KeyVersion   = "version"
	KeyStatus    = "status"
	KeyStatusMsg = "status_msg"

	// Identity
	KeyClientID = "client_id"
	KeyUsername = "username"

	// Connection
	KeyClientIP     = "client_ip"
	KeyConnectionID = "connection_id"

	// File operations
	KeyFilename = "filename"
	KeySize     = "size"
	KeyCRC      = "crc"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Opcode returns a slog.Attr for the request/response opcode name.
func Opcode(name string) slog.Attr {
	return slog.String(KeyOpcode, name)
}

// Version returns a slog.Attr for the protocol version byte.
func Version(v uint8) slog.Attr {
	return slog.Any(KeyVersion, v)
}

// Status returns a slog.Attr for a response opcode/status code.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for a human-readable status message.
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// ClientID returns a slog.Attr for a hex-encoded client ID.
func ClientID(hex string) slog.Attr {
	return slog.String(KeyClientID, hex)
}

// Username returns a slog.Attr for a claimed username.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// ClientIP returns a slog.Attr for the remote address of a connection.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ConnectionID returns a slog.Attr for an internal connection counter.
func ConnectionID(id uint64) slog.Attr {
	return slog.Uint64(KeyConnectionID, id)
}

// Filename returns a slog.Attr for a client-supplied filename.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Size returns a slog.Attr for a byte size.
func Size(n uint64) slog.Attr {
	return slog.Uint64(KeySize, n)
}

// CRC returns a slog.Attr for a computed checksum.
func CRC(v uint32) slog.Attr {
	return slog.Any(KeyCRC, v)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}
