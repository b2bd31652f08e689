// Package stats is the single source of truth for the server's runtime
// counters: plain atomic fields, incremented inline by the dispatcher
// and acceptor with no locking, and read without locking by anything
// that wants a snapshot (the Prometheus collector). Readers tolerate torn reads across fields — each
// individual counter is still atomically consistent, but a snapshot
// taken mid-update may see some fields advance and others not yet.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/filevault/backupd/internal/protocol"
)

// Stats holds one atomic counter per request opcode, per response
// opcode, and a handful of cross-cutting totals. It implements
// metrics.Sink directly (see internal/metrics), so the dispatcher can
// be handed either a *Stats or a no-op sink without caring which.
type Stats struct {
	connections atomic.Int64

	requestsByOpcode  [7]atomic.Int64 // indexed by opcode - firstRequestOpcode
	responsesByOpcode [8]atomic.Int64

	filesReceived atomic.Int64
	fileBytes     atomic.Int64

	crcValid          atomic.Int64
	crcInvalidResend  atomic.Int64
	crcInvalidAbort   atomic.Int64

	errors atomic.Int64
}

// New returns a zeroed Stats object.
func New() *Stats {
	return &Stats{}
}

// firstRequestOpcode and firstResponseOpcode anchor the small dense
// arrays above to the opcode numbering in internal/protocol.
const (
	firstRequestOpcode  = uint16(protocol.OpRegister)
	firstResponseOpcode = uint16(protocol.OpRegisterSuccess)
)

func (s *Stats) RecordConnection() {
	s.connections.Add(1)
}

func (s *Stats) RecordRequest(opcode string, _ time.Duration) {
	if idx, ok := requestOpcodeIndex(opcode); ok {
		s.requestsByOpcode[idx].Add(1)
	}
}

func (s *Stats) RecordResponse(opcode string) {
	if idx, ok := responseOpcodeIndex(opcode); ok {
		s.responsesByOpcode[idx].Add(1)
	}
}

func (s *Stats) RecordFileReceived(bytes int, _ time.Duration) {
	s.filesReceived.Add(1)
	s.fileBytes.Add(int64(bytes))
}

func (s *Stats) RecordCRCOutcome(outcome string) {
	switch outcome {
	case protocol.OpCrcValid.String():
		s.crcValid.Add(1)
	case protocol.OpCrcInvalidResend.String():
		s.crcInvalidResend.Add(1)
	case protocol.OpCrcInvalidAbort.String():
		s.crcInvalidAbort.Add(1)
	}
}

func (s *Stats) RecordError(_ string) {
	s.errors.Add(1)
}

// Snapshot is a point-in-time copy of every counter, safe to read after
// the fact (each field was read with a single atomic load).
type Snapshot struct {
	Connections       int64
	RequestsByOpcode  map[string]int64
	ResponsesByOpcode map[string]int64
	FilesReceived     int64
	FileBytes         int64
	CRCValid          int64
	CRCInvalidResend  int64
	CRCInvalidAbort   int64
	Errors            int64
}

// Snapshot reads every counter once and returns the result. Individual
// fields may be torn relative to each other under concurrent writers,
// by design.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Connections:       s.connections.Load(),
		RequestsByOpcode:  make(map[string]int64, len(s.requestsByOpcode)),
		ResponsesByOpcode: make(map[string]int64, len(s.responsesByOpcode)),
		FilesReceived:     s.filesReceived.Load(),
		FileBytes:         s.fileBytes.Load(),
		CRCValid:          s.crcValid.Load(),
		CRCInvalidResend:  s.crcInvalidResend.Load(),
		CRCInvalidAbort:   s.crcInvalidAbort.Load(),
		Errors:            s.errors.Load(),
	}
	for op := protocol.OpRegister; uint16(op) < firstRequestOpcode+uint16(len(s.requestsByOpcode)); op++ {
		idx := uint16(op) - firstRequestOpcode
		snap.RequestsByOpcode[op.String()] = s.requestsByOpcode[idx].Load()
	}
	for op := protocol.OpRegisterSuccess; uint16(op) < firstResponseOpcode+uint16(len(s.responsesByOpcode)); op++ {
		idx := uint16(op) - firstResponseOpcode
		snap.ResponsesByOpcode[op.String()] = s.responsesByOpcode[idx].Load()
	}
	return snap
}

func requestOpcodeIndex(name string) (int, bool) {
	for op := protocol.OpRegister; uint16(op) < firstRequestOpcode+7; op++ {
		if op.String() == name {
			return int(uint16(op) - firstRequestOpcode), true
		}
	}
	return 0, false
}

func responseOpcodeIndex(name string) (int, bool) {
	for op := protocol.OpRegisterSuccess; uint16(op) < firstResponseOpcode+8; op++ {
		if op.String() == name {
			return int(uint16(op) - firstResponseOpcode), true
		}
	}
	return 0, false
}
