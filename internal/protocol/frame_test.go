package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHeaderRoundTrip(t *testing.T) {
	var id [ClientIDSize]byte
	for i := range id {
		id[i] = byte(i)
	}

	buf := make([]byte, RequestHeaderSize)
	copy(buf[0:16], id[:])
	buf[16] = Version
	buf[17] = 0x01 // opcode low byte: 0x0401 = 1025
	buf[18] = 0x04
	buf[19] = 255 // length = 255 little-endian
	buf[20] = 0
	buf[21] = 0
	buf[22] = 0

	h, err := DecodeRequestHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, id, h.ClientID)
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, OpRegister, h.Opcode)
	assert.Equal(t, uint32(255), h.Length)
}

func TestReadRequestHeaderFromReader(t *testing.T) {
	var id [ClientIDSize]byte
	req := RequestHeader{ClientID: id, Version: Version, Opcode: OpSendFile, Length: 42}

	buf := make([]byte, RequestHeaderSize)
	copy(buf, req.ClientID[:])
	buf[16] = req.Version
	buf[17] = byte(req.Opcode)
	buf[18] = byte(req.Opcode >> 8)
	buf[19] = byte(req.Length)
	buf[20] = byte(req.Length >> 8)

	got, err := ReadRequestHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, req.Opcode, got.Opcode)
	assert.Equal(t, req.Length, got.Length)
}

func TestEncodeResponseFrame(t *testing.T) {
	payload := []byte("hello")
	frame := EncodeResponse(OpGenericAck, payload)

	require.Len(t, frame, ResponseHeaderSize+len(payload))
	assert.Equal(t, Version, frame[0])
	assert.Equal(t, []byte("hello"), frame[ResponseHeaderSize:])
}

func TestFixedStringRoundTrip(t *testing.T) {
	dst := make([]byte, UsernameSize)
	putFixedString(dst, "alice")
	assert.Equal(t, "alice", getFixedString(dst))
	assert.Equal(t, byte(0), dst[5])
}

func TestFixedStringTruncatesOverlongInput(t *testing.T) {
	dst := make([]byte, 4)
	putFixedString(dst, "abcdef")
	// 3 chars + terminator fit in 4 bytes.
	assert.Equal(t, "abc", getFixedString(dst))
	assert.Equal(t, byte(0), dst[3])
}

func TestFixedStringWithNoTerminatorUsesFullWidth(t *testing.T) {
	dst := []byte{'a', 'b', 'c'}
	assert.Equal(t, "abc", getFixedString(dst))
}

func TestRegisterRequestRoundTrip(t *testing.T) {
	want := RegisterRequest{Username: "alice"}
	got, err := DecodeRegisterRequest(EncodeRegisterRequest(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSendPublicKeyRequestRoundTrip(t *testing.T) {
	var spki [RSAKeySize]byte
	for i := range spki {
		spki[i] = byte(i % 251)
	}
	want := SendPublicKeyRequest{Username: "alice", RSASPKI: spki}
	got, err := DecodeSendPublicKeyRequest(EncodeSendPublicKeyRequest(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSendFileRequestRoundTrip(t *testing.T) {
	want := SendFileRequest{
		ContentSize:  16,
		OriginalSize: 13,
		PacketNumber: 1,
		TotalPackets: 1,
		Filename:     "hello.txt",
		Ciphertext:   []byte("0123456789abcdef"),
	}
	got, err := DecodeSendFileRequest(EncodeSendFileRequest(want))
	require.NoError(t, err)
	assert.Equal(t, want.ContentSize, got.ContentSize)
	assert.Equal(t, want.OriginalSize, got.OriginalSize)
	assert.Equal(t, want.PacketNumber, got.PacketNumber)
	assert.Equal(t, want.TotalPackets, got.TotalPackets)
	assert.Equal(t, want.Filename, got.Filename)
	assert.Equal(t, want.Ciphertext, got.Ciphertext)
}

func TestCRCOutcomeRequestRoundTrip(t *testing.T) {
	want := CRCOutcomeRequest{Filename: "hello.txt"}
	got, err := DecodeCRCOutcomeRequest(EncodeCRCOutcomeRequest(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestKeyExchangeResponseRoundTrip(t *testing.T) {
	var id [ClientIDSize]byte
	copy(id[:], []byte("0123456789abcdef"))
	wrapped := bytes.Repeat([]byte{0xAB}, 128)

	payload := EncodeKeyExchangeResponse(id, wrapped)
	gotID, gotWrapped, err := DecodeKeyExchangeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, wrapped, gotWrapped)
}

func TestFileReceivedRoundTrip(t *testing.T) {
	var id [ClientIDSize]byte
	copy(id[:], []byte("0123456789abcdef"))

	payload := EncodeFileReceived(id, 16, "hello.txt", 0xDEADBEEF)
	got, err := DecodeFileReceived(payload)
	require.NoError(t, err)
	assert.Equal(t, id, got.ClientID)
	assert.Equal(t, uint32(16), got.CiphertextSize)
	assert.Equal(t, "hello.txt", got.Filename)
	assert.Equal(t, uint32(0xDEADBEEF), got.CRC)
}

func TestDecodeRejectsShortPayloads(t *testing.T) {
	_, err := DecodeRegisterRequest(make([]byte, UsernameSize-1))
	assert.Error(t, err)

	_, err = DecodeSendPublicKeyRequest(make([]byte, UsernameSize))
	assert.Error(t, err)

	_, err = DecodeSendFileRequest(make([]byte, SendFileMinSize-1))
	assert.Error(t, err)

	_, err = DecodeCRCOutcomeRequest(make([]byte, 0))
	assert.Error(t, err)
}
