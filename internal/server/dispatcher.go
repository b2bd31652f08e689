package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/filevault/backupd/internal/crc"
	"github.com/filevault/backupd/internal/cryptoutil"
	"github.com/filevault/backupd/internal/filestore"
	"github.com/filevault/backupd/internal/logger"
	"github.com/filevault/backupd/internal/metrics"
	"github.com/filevault/backupd/internal/protocol"
	"github.com/filevault/backupd/internal/session"
	"github.com/filevault/backupd/internal/telemetry"
	"github.com/filevault/backupd/pkg/bufpool"
)

// dispatcher processes requests for one accepted connection. Requests
// on a single connection are handled strictly in order — the wire
// format carries no request ID to multiplex on, so there is exactly one
// in-flight request per connection at a time.
type dispatcher struct {
	conn     net.Conn
	registry *session.Registry
	store    *filestore.Store
	sink     metrics.Sink
	maxFile  int64
}

func (d *dispatcher) run(ctx context.Context) {
	addr := d.conn.RemoteAddr().String()
	defer d.conn.Close()

	logger.Debug("connection accepted", logger.ClientIP(addr))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("connection closing on shutdown", logger.ClientIP(addr))
			return
		default:
		}

		header, err := protocol.ReadRequestHeader(d.conn)
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logger.Debug("read error, closing connection", logger.ClientIP(addr), logger.Err(err))
			}
			return
		}

		logger.Debug("request received", logger.ClientIP(addr),
			logger.Opcode(header.Opcode.String()), logger.Size(uint64(header.Length)))

		if header.Version != protocol.Version {
			logger.Warn("protocol version mismatch, sending ServerError",
				logger.ClientIP(addr), logger.Version(header.Version))
			d.sink.RecordError("version")
			d.writeResponse(protocol.OpServerError, nil)
			// Drain this request's declared payload so the stream stays
			// framed for the next one.
			d.drain(header.Length)
			continue
		}

		payload := bufpool.GetUint32(header.Length)
		if _, err := io.ReadFull(d.conn, payload); err != nil {
			bufpool.Put(payload)
			logger.Debug("short payload read, closing connection", logger.ClientIP(addr), logger.Err(err))
			return
		}

		reqCtx, span := telemetry.StartRequestSpan(ctx, addr)
		telemetry.SetAttributes(reqCtx,
			telemetry.Opcode(header.Opcode.String()),
			telemetry.ClientID(hex.EncodeToString(header.ClientID[:])))

		start := time.Now()
		resp := d.handle(header, payload)
		bufpool.Put(payload)
		d.sink.RecordRequest(header.Opcode.String(), time.Since(start))

		if resp != nil {
			d.sink.RecordResponse(resp.opcode.String())
			telemetry.SetAttributes(reqCtx, telemetry.Status(resp.opcode.String()))
			if resp.opcode == protocol.OpServerError || resp.opcode == protocol.OpRegisterFailed || resp.opcode == protocol.OpReconnectDenied {
				telemetry.RecordError(reqCtx, fmt.Errorf("request failed: %s", resp.opcode))
			}
			if resp.opcode == protocol.OpServerError {
				logger.Warn("request failed with ServerError", logger.ClientIP(addr),
					logger.Opcode(header.Opcode.String()),
					logger.ClientID(hex.EncodeToString(header.ClientID[:])))
			}
			d.writeResponse(resp.opcode, resp.payload)
		}
		span.End()
		// CrcInvalidResend (1030) has nil resp by design: no response is sent.
	}
}

// drain discards n bytes from the connection without decoding them, used
// after a version-gating ServerError where the client's declared payload
// length must still be consumed to keep framing aligned.
func (d *dispatcher) drain(n uint32) {
	if n == 0 {
		return
	}
	_, _ = io.CopyN(io.Discard, d.conn, int64(n))
}

type response struct {
	opcode  protocol.ResponseOpcode
	payload []byte
}

func (d *dispatcher) writeResponse(opcode protocol.ResponseOpcode, payload []byte) {
	frame := protocol.EncodeResponse(opcode, payload)
	if _, err := d.conn.Write(frame); err != nil {
		logger.Debug("write error", logger.Opcode(opcode.String()), logger.Err(err))
	}
}

func (d *dispatcher) handle(header protocol.RequestHeader, payload []byte) *response {
	switch header.Opcode {
	case protocol.OpRegister:
		return d.handleRegister(payload)
	case protocol.OpSendPublicKey:
		return d.handleSendPublicKey(payload)
	case protocol.OpReconnect:
		return d.handleReconnect(header, payload)
	case protocol.OpSendFile:
		return d.handleSendFile(header, payload)
	case protocol.OpCrcValid:
		return d.handleCRCValid(header, payload)
	case protocol.OpCrcInvalidResend:
		if len(payload) < protocol.FilenameSize {
			d.sink.RecordError("decode")
			return &response{opcode: protocol.OpServerError}
		}
		d.sink.RecordCRCOutcome(protocol.OpCrcInvalidResend.String())
		return nil
	case protocol.OpCrcInvalidAbort:
		return d.handleCRCInvalidAbort(header, payload)
	default:
		d.sink.RecordError("unknown_opcode")
		return &response{opcode: protocol.OpServerError}
	}
}

func (d *dispatcher) handleRegister(payload []byte) *response {
	if len(payload) < protocol.UsernameSize {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	req, err := protocol.DecodeRegisterRequest(payload)
	if err != nil {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	sess, err := d.registry.Register(req.Username)
	if err != nil {
		logger.Info("register rejected", logger.Username(req.Username), logger.Err(err))
		return &response{opcode: protocol.OpRegisterFailed}
	}

	logger.Info("registered", logger.Username(req.Username), logger.ClientID(hex.EncodeToString(sess.ClientID[:])))
	return &response{opcode: protocol.OpRegisterSuccess, payload: protocol.EncodeRegisterSuccess(sess.ClientID)}
}

func (d *dispatcher) handleSendPublicKey(payload []byte) *response {
	if len(payload) < protocol.UsernameSize+protocol.RSAKeySize {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	req, err := protocol.DecodeSendPublicKeyRequest(payload)
	if err != nil {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	sess, err := d.registry.Reconnect(req.Username)
	if err != nil {
		d.sink.RecordError("auth")
		return &response{opcode: protocol.OpServerError}
	}

	pub, err := cryptoutil.ImportRSAPublicKey(req.RSASPKI[:])
	if err != nil {
		d.sink.RecordError("crypto")
		return &response{opcode: protocol.OpServerError}
	}

	aesKey, err := newAESKey()
	if err != nil {
		d.sink.RecordError("crypto")
		return &response{opcode: protocol.OpServerError}
	}

	if err := d.registry.AttachPublicKey(sess.ClientID, pub, aesKey); err != nil {
		d.sink.RecordError("auth")
		return &response{opcode: protocol.OpServerError}
	}

	wrapped, err := cryptoutil.WrapAESKey(pub, aesKey)
	if err != nil {
		d.sink.RecordError("crypto")
		return &response{opcode: protocol.OpServerError}
	}

	logger.Info("public key received", logger.Username(req.Username), logger.ClientID(hex.EncodeToString(sess.ClientID[:])))
	return &response{opcode: protocol.OpPublicKeyReceived, payload: protocol.EncodeKeyExchangeResponse(sess.ClientID, wrapped)}
}

func (d *dispatcher) handleReconnect(header protocol.RequestHeader, payload []byte) *response {
	if len(payload) < protocol.UsernameSize {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	req, err := protocol.DecodeReconnectRequest(payload)
	if err != nil {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	sess, err := d.registry.Reconnect(req.Username)
	if err != nil {
		d.sink.RecordError("auth")
		return &response{opcode: protocol.OpReconnectDenied, payload: protocol.EncodeGenericAck(header.ClientID)}
	}

	if sess.PublicKey == nil {
		d.sink.RecordError("auth")
		return &response{opcode: protocol.OpReconnectDenied, payload: protocol.EncodeGenericAck(sess.ClientID)}
	}

	aesKey, err := newAESKey()
	if err != nil {
		d.sink.RecordError("crypto")
		return &response{opcode: protocol.OpReconnectDenied, payload: protocol.EncodeGenericAck(sess.ClientID)}
	}

	if err := d.registry.Rekey(sess.ClientID, sess.PublicKey, aesKey); err != nil {
		d.sink.RecordError("auth")
		return &response{opcode: protocol.OpReconnectDenied, payload: protocol.EncodeGenericAck(sess.ClientID)}
	}

	wrapped, err := cryptoutil.WrapAESKey(sess.PublicKey, aesKey)
	if err != nil {
		d.sink.RecordError("crypto")
		return &response{opcode: protocol.OpReconnectDenied, payload: protocol.EncodeGenericAck(sess.ClientID)}
	}

	logger.Info("reconnect approved", logger.Username(req.Username), logger.ClientID(hex.EncodeToString(sess.ClientID[:])))
	return &response{opcode: protocol.OpReconnectApproved, payload: protocol.EncodeKeyExchangeResponse(sess.ClientID, wrapped)}
}

func (d *dispatcher) handleSendFile(header protocol.RequestHeader, payload []byte) *response {
	if len(payload) < protocol.SendFileMinSize {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	req, err := protocol.DecodeSendFileRequest(payload)
	if err != nil {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	if req.PacketNumber != 1 || req.TotalPackets != 1 {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	if d.maxFile > 0 && int64(len(req.Ciphertext)) > d.maxFile {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}

	sess, ok := d.registry.Lookup(header.ClientID)
	if !ok || sess.AESKey == nil {
		d.sink.RecordError("auth")
		return &response{opcode: protocol.OpServerError}
	}

	start := time.Now()
	plaintext, err := cryptoutil.DecryptFile(sess.AESKey, req.Ciphertext)
	if err != nil {
		d.sink.RecordError("crypto")
		return &response{opcode: protocol.OpServerError}
	}

	if _, err := d.store.Save(header.ClientID, req.Filename, plaintext); err != nil {
		d.sink.RecordError("io")
		return &response{opcode: protocol.OpServerError}
	}
	d.sink.RecordFileReceived(len(plaintext), time.Since(start))

	sum := crc.Checksum(plaintext)
	logger.Info("file received",
		logger.ClientID(hex.EncodeToString(header.ClientID[:])),
		logger.Filename(req.Filename),
		logger.Size(uint64(len(plaintext))),
		logger.CRC(sum))

	return &response{
		opcode:  protocol.OpFileReceived,
		payload: protocol.EncodeFileReceived(header.ClientID, uint32(len(req.Ciphertext)), req.Filename, sum),
	}
}

func (d *dispatcher) handleCRCValid(header protocol.RequestHeader, payload []byte) *response {
	if _, err := protocol.DecodeCRCOutcomeRequest(payload); err != nil {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}
	d.sink.RecordCRCOutcome(protocol.OpCrcValid.String())
	return &response{opcode: protocol.OpGenericAck, payload: protocol.EncodeGenericAck(header.ClientID)}
}

func (d *dispatcher) handleCRCInvalidAbort(header protocol.RequestHeader, payload []byte) *response {
	if _, err := protocol.DecodeCRCOutcomeRequest(payload); err != nil {
		d.sink.RecordError("decode")
		return &response{opcode: protocol.OpServerError}
	}
	d.sink.RecordCRCOutcome(protocol.OpCrcInvalidAbort.String())
	return &response{opcode: protocol.OpGenericAck, payload: protocol.EncodeGenericAck(header.ClientID)}
}

func newAESKey() ([]byte, error) {
	key := make([]byte, protocol.AESKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
