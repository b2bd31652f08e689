package protocol

import (
	"encoding/binary"
	"fmt"
)

// ---- Request payloads --------------------------------------------------

// RegisterRequest carries a 255-byte username field.
type RegisterRequest struct {
	Username string
}

// DecodeRegisterRequest parses a Register (1025) payload.
func DecodeRegisterRequest(b []byte) (RegisterRequest, error) {
	if len(b) < UsernameSize {
		return RegisterRequest{}, fmt.Errorf("protocol: register payload too short: %d bytes", len(b))
	}
	return RegisterRequest{Username: getFixedString(b[:UsernameSize])}, nil
}

// EncodeRegisterRequest is provided for client-side tests and round-trip
// verification; the server never constructs this payload itself.
func EncodeRegisterRequest(r RegisterRequest) []byte {
	out := make([]byte, UsernameSize)
	putFixedString(out, r.Username)
	return out
}

// SendPublicKeyRequest carries a username plus a 160-byte RSA SPKI.
type SendPublicKeyRequest struct {
	Username string
	RSASPKI  [RSAKeySize]byte
}

func DecodeSendPublicKeyRequest(b []byte) (SendPublicKeyRequest, error) {
	if len(b) < UsernameSize+RSAKeySize {
		return SendPublicKeyRequest{}, fmt.Errorf("protocol: send-public-key payload too short: %d bytes", len(b))
	}
	var req SendPublicKeyRequest
	req.Username = getFixedString(b[:UsernameSize])
	copy(req.RSASPKI[:], b[UsernameSize:UsernameSize+RSAKeySize])
	return req, nil
}

func EncodeSendPublicKeyRequest(r SendPublicKeyRequest) []byte {
	out := make([]byte, UsernameSize+RSAKeySize)
	putFixedString(out[:UsernameSize], r.Username)
	copy(out[UsernameSize:], r.RSASPKI[:])
	return out
}

// ReconnectRequest carries a 255-byte username field.
type ReconnectRequest struct {
	Username string
}

func DecodeReconnectRequest(b []byte) (ReconnectRequest, error) {
	if len(b) < UsernameSize {
		return ReconnectRequest{}, fmt.Errorf("protocol: reconnect payload too short: %d bytes", len(b))
	}
	return ReconnectRequest{Username: getFixedString(b[:UsernameSize])}, nil
}

func EncodeReconnectRequest(r ReconnectRequest) []byte {
	out := make([]byte, UsernameSize)
	putFixedString(out, r.Username)
	return out
}

// SendFileRequest carries sizes, a packet sequence, a filename, and the
// ciphertext filling the remainder of the payload.
type SendFileRequest struct {
	ContentSize   uint32 // ciphertext length
	OriginalSize  uint32 // plaintext length as claimed by the client
	PacketNumber  uint16
	TotalPackets  uint16
	Filename      string
	Ciphertext    []byte
}

// sendFileHeaderSize is the fixed portion preceding the filename field.
const sendFileHeaderSize = 4 + 4 + 2 + 2

// SendFileMinSize is the smallest legal SendFile payload: the fixed
// header plus the filename field, with zero ciphertext bytes.
const SendFileMinSize = sendFileHeaderSize + FilenameSize

func DecodeSendFileRequest(b []byte) (SendFileRequest, error) {
	if len(b) < SendFileMinSize {
		return SendFileRequest{}, fmt.Errorf("protocol: send-file payload too short: %d bytes", len(b))
	}
	var req SendFileRequest
	req.ContentSize = binary.LittleEndian.Uint32(b[0:4])
	req.OriginalSize = binary.LittleEndian.Uint32(b[4:8])
	req.PacketNumber = binary.LittleEndian.Uint16(b[8:10])
	req.TotalPackets = binary.LittleEndian.Uint16(b[10:12])
	req.Filename = getFixedString(b[12 : 12+FilenameSize])
	req.Ciphertext = b[12+FilenameSize:]
	return req, nil
}

func EncodeSendFileRequest(r SendFileRequest) []byte {
	out := make([]byte, SendFileMinSize+len(r.Ciphertext))
	binary.LittleEndian.PutUint32(out[0:4], r.ContentSize)
	binary.LittleEndian.PutUint32(out[4:8], r.OriginalSize)
	binary.LittleEndian.PutUint16(out[8:10], r.PacketNumber)
	binary.LittleEndian.PutUint16(out[10:12], r.TotalPackets)
	putFixedString(out[12:12+FilenameSize], r.Filename)
	copy(out[SendFileMinSize:], r.Ciphertext)
	return out
}

// CRCOutcomeRequest is the shared shape of CrcValid/CrcInvalidResend/
// CrcInvalidAbort (1029/1030/1031): a 255-byte filename field.
type CRCOutcomeRequest struct {
	Filename string
}

func DecodeCRCOutcomeRequest(b []byte) (CRCOutcomeRequest, error) {
	if len(b) < FilenameSize {
		return CRCOutcomeRequest{}, fmt.Errorf("protocol: crc-outcome payload too short: %d bytes", len(b))
	}
	return CRCOutcomeRequest{Filename: getFixedString(b[:FilenameSize])}, nil
}

func EncodeCRCOutcomeRequest(r CRCOutcomeRequest) []byte {
	out := make([]byte, FilenameSize)
	putFixedString(out, r.Filename)
	return out
}

// ---- Response payloads -------------------------------------------------

// EncodeRegisterSuccess builds the RegisterSuccess (1600) payload.
func EncodeRegisterSuccess(clientID [ClientIDSize]byte) []byte {
	out := make([]byte, ClientIDSize)
	putClientID(out, clientID)
	return out
}

// DecodeRegisterSuccess parses a RegisterSuccess payload (used by tests
// that exercise the protocol from the client's point of view).
func DecodeRegisterSuccess(b []byte) ([ClientIDSize]byte, error) {
	if len(b) < ClientIDSize {
		return [ClientIDSize]byte{}, fmt.Errorf("protocol: register-success payload too short: %d bytes", len(b))
	}
	return getClientID(b), nil
}

// EncodeKeyExchangeResponse builds the shared payload shape of
// PublicKeyReceived (1602) and ReconnectApproved (1605):
// client ID followed by an RSA-OAEP-wrapped AES key.
func EncodeKeyExchangeResponse(clientID [ClientIDSize]byte, wrappedKey []byte) []byte {
	out := make([]byte, ClientIDSize+len(wrappedKey))
	putClientID(out, clientID)
	copy(out[ClientIDSize:], wrappedKey)
	return out
}

// DecodeKeyExchangeResponse splits a PublicKeyReceived/ReconnectApproved
// payload back into client ID and wrapped key.
func DecodeKeyExchangeResponse(b []byte) ([ClientIDSize]byte, []byte, error) {
	if len(b) < ClientIDSize {
		return [ClientIDSize]byte{}, nil, fmt.Errorf("protocol: key-exchange payload too short: %d bytes", len(b))
	}
	return getClientID(b), b[ClientIDSize:], nil
}

// EncodeFileReceived builds the FileReceived (1603) payload.
func EncodeFileReceived(clientID [ClientIDSize]byte, ciphertextSize uint32, filename string, crc uint32) []byte {
	out := make([]byte, ClientIDSize+4+FilenameSize+4)
	putClientID(out, clientID)
	binary.LittleEndian.PutUint32(out[ClientIDSize:], ciphertextSize)
	putFixedString(out[ClientIDSize+4:ClientIDSize+4+FilenameSize], filename)
	binary.LittleEndian.PutUint32(out[ClientIDSize+4+FilenameSize:], crc)
	return out
}

// FileReceived is the parsed form of a FileReceived response, used by
// client-side tests exercising the full wire round trip.
type FileReceived struct {
	ClientID       [ClientIDSize]byte
	CiphertextSize uint32
	Filename       string
	CRC            uint32
}

func DecodeFileReceived(b []byte) (FileReceived, error) {
	want := ClientIDSize + 4 + FilenameSize + 4
	if len(b) < want {
		return FileReceived{}, fmt.Errorf("protocol: file-received payload too short: %d bytes", len(b))
	}
	return FileReceived{
		ClientID:       getClientID(b),
		CiphertextSize: binary.LittleEndian.Uint32(b[ClientIDSize:]),
		Filename:       getFixedString(b[ClientIDSize+4 : ClientIDSize+4+FilenameSize]),
		CRC:            binary.LittleEndian.Uint32(b[ClientIDSize+4+FilenameSize:]),
	}, nil
}

// EncodeGenericAck builds the GenericAck (1604) / ReconnectDenied (1606)
// payload shape: a bare client ID.
func EncodeGenericAck(clientID [ClientIDSize]byte) []byte {
	out := make([]byte, ClientIDSize)
	putClientID(out, clientID)
	return out
}
