package cryptoutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/filevault/backupd/internal/protocol"
)

// zeroIV is the fixed, all-zero 16-byte CBC initialization vector the
// protocol uses for every file decryption. This is a known weakness
// (a chosen-plaintext/IV-reuse flaw) inherent to the wire format itself;
// changing it would break interoperability, so it is left as-is here.
var zeroIV = make([]byte, aes.BlockSize)

// DecryptFile decrypts ciphertext with AES-256 in CBC mode under the
// given 32-byte key and the fixed zero IV, then strips PKCS#7 padding.
// ciphertext must be a non-zero multiple of the AES block size.
func DecryptFile(key, ciphertext []byte) ([]byte, error) {
	if len(key) != protocol.AESKeySize {
		return nil, fmt.Errorf("cryptoutil: AES key must be %d bytes, got %d", protocol.AESKeySize, len(key))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptoutil: ciphertext length %d is not a non-zero multiple of the block size", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new AES cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(plaintext, ciphertext)

	return unpadPKCS7(plaintext)
}

// unpadPKCS7 validates and strips PKCS#7 padding. The final byte must be
// in [1, blockSize] and every padding byte must equal that value; any
// violation is treated as corrupt ciphertext rather than silently
// truncated.
func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptoutil: padded plaintext length %d is invalid", len(data))
	}

	padLen := int(data[len(data)-1])
	if padLen < 1 || padLen > aes.BlockSize {
		return nil, fmt.Errorf("cryptoutil: invalid PKCS#7 padding byte %d", padLen)
	}
	if padLen > len(data) {
		return nil, fmt.Errorf("cryptoutil: PKCS#7 padding length %d exceeds data length %d", padLen, len(data))
	}

	padding := data[len(data)-padLen:]
	if !bytes.Equal(padding, bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, fmt.Errorf("cryptoutil: malformed PKCS#7 padding")
	}

	return data[:len(data)-padLen], nil
}
