package metrics

import "time"

// Sink is the set of operational counters the dispatcher and acceptor
// report through. A nil Sink is valid everywhere it is accepted and
// turns every call into a no-op, so metrics collection costs nothing
// when it isn't wanted.
type Sink interface {
	// RecordConnection records one accepted TCP connection.
	RecordConnection()

	// RecordRequest records one decoded request for opcode, along with
	// how long the dispatcher took to produce a response.
	RecordRequest(opcode string, duration time.Duration)

	// RecordResponse records one response sent back to a client, keyed
	// by the response opcode (so "ServerError" and "RegisterFailed" are
	// visible as separate series from successful acks).
	RecordResponse(opcode string)

	// RecordFileReceived records a completed file write: its plaintext
	// size and how long the decrypt-plus-store path took.
	RecordFileReceived(bytes int, duration time.Duration)

	// RecordCRCOutcome records a CrcValid/CrcInvalidResend/CrcInvalidAbort
	// decision from the client.
	RecordCRCOutcome(outcome string)

	// RecordError records a dispatcher-level error, keyed by a short
	// category ("version", "decode", "auth", "crypto", "io",
	// "unknown_opcode").
	RecordError(category string)
}

// NopSink is a Sink that discards everything; used when metrics are
// disabled so the dispatcher never has to nil-check.
type NopSink struct{}

func (NopSink) RecordConnection()                            {}
func (NopSink) RecordRequest(string, time.Duration)           {}
func (NopSink) RecordResponse(string)                         {}
func (NopSink) RecordFileReceived(int, time.Duration)         {}
func (NopSink) RecordCRCOutcome(string)                       {}
func (NopSink) RecordError(string)                            {}
