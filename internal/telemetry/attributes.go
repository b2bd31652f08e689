package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for request spans.
const (
	AttrClientIP = "client.ip"
	AttrOpcode   = "protocol.opcode"
	AttrClientID = "protocol.client_id"
	AttrUsername = "protocol.username"
	AttrFilename = "protocol.filename"
	AttrFileSize = "protocol.file_size"
	AttrCRC      = "protocol.crc"
	AttrStatus   = "protocol.status"
)

// SpanRequest is the root span name for one dispatched request.
const SpanRequest = "backupd.request"

func ClientIP(addr string) attribute.KeyValue { return attribute.String(AttrClientIP, addr) }
func Opcode(name string) attribute.KeyValue   { return attribute.String(AttrOpcode, name) }
func ClientID(hex string) attribute.KeyValue  { return attribute.String(AttrClientID, hex) }
func Username(name string) attribute.KeyValue { return attribute.String(AttrUsername, name) }
func Filename(name string) attribute.KeyValue { return attribute.String(AttrFilename, name) }
func FileSize(n uint64) attribute.KeyValue    { return attribute.Int64(AttrFileSize, int64(n)) }
func CRC(v uint32) attribute.KeyValue         { return attribute.Int64(AttrCRC, int64(v)) }
func Status(name string) attribute.KeyValue   { return attribute.String(AttrStatus, name) }

// StartRequestSpan starts the root span for one dispatched request,
// tagging it with the client's remote address.
func StartRequestSpan(ctx context.Context, clientIP string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRequest, trace.WithAttributes(ClientIP(clientIP)))
}
