package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

// GenericKey is the fixed key used for scan responses and bind exchanges.
// It is part of the vendor protocol and publicly known.
const GenericKey = "a3K8Bx%2r8Y7#xDh"

// BlockSize is the AES block size used by the protocol.
const BlockSize = 16

// Codec errors.
var (
	ErrKeySize        = errors.New("key must be 16 bytes")
	ErrCiphertextSize = errors.New("ciphertext is not a multiple of the block size")
)

// Encrypt pads the plaintext with PKCS7, encrypts it with AES-128-ECB and
// returns the base64-encoded ciphertext. A full padding block is appended
// when the plaintext is already block-aligned, per standard PKCS7.
func Encrypt(plaintext []byte, key []byte) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext)
	out := make([]byte, len(padded))
	for pos := 0; pos < len(padded); pos += BlockSize {
		block.Encrypt(out[pos:pos+BlockSize], padded[pos:pos+BlockSize])
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt base64-decodes the pack, decrypts each block with AES-128-ECB
// and strips the PKCS7 padding. Only the trailing length byte is consulted
// when unpadding; the remaining pad bytes are not validated. The trim
// count is clamped to the payload length so a corrupt trailer cannot
// over-trim.
func Decrypt(pack string, key []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	payload, err := base64.StdEncoding.DecodeString(pack)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	if len(payload)%BlockSize != 0 {
		return nil, ErrCiphertextSize
	}

	out := make([]byte, len(payload))
	for pos := 0; pos < len(payload); pos += BlockSize {
		block.Decrypt(out[pos:pos+BlockSize], payload[pos:pos+BlockSize])
	}

	return pkcs7Unpad(out), nil
}

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != BlockSize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return block, nil
}

func pkcs7Pad(payload []byte) []byte {
	padLen := BlockSize - len(payload)%BlockSize
	padded := make([]byte, len(payload), len(payload)+padLen)
	copy(padded, payload)
	for i := 0; i < padLen; i++ {
		padded = append(padded, byte(padLen))
	}
	return padded
}

func pkcs7Unpad(payload []byte) []byte {
	if len(payload) == 0 {
		return payload
	}
	n := int(payload[len(payload)-1])
	if n > len(payload) {
		n = len(payload)
	}
	return payload[:len(payload)-n]
}
