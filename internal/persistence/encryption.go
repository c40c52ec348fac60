package persistence

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// Cipher holds the fixed key/IV pair the source passes to its
// db_worker's encrypt step. AES-CFB with a caller-supplied IV (rather
// than a fresh nonce per message) is what DBWorker.cpp does; it is kept
// here unchanged since spec.md treats the exact cryptographic scheme as
// an implementation detail of "an encryption envelope", not a contract.
type Cipher struct {
	block cipher.Block
	iv    []byte
}

func NewCipher(key, iv []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Cipher{block: block, iv: iv}, nil
}

// Encrypt returns the base64-encoded ciphertext of plaintext.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	stream := cipher.NewCFBEncrypter(c.block, c.iv)
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt is the inverse of Encrypt, used by tests to verify the round trip.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	stream := cipher.NewCFBDecrypter(c.block, c.iv)
	plaintext := make([]byte, len(ciphertext))
	stream.XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}
