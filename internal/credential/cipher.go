package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	dErrors "bastion/pkg/domain-errors"
)

const (
	AlgorithmAESGCM = "AES-256-GCM"
	keySize         = 32
	nonceSize       = 12
	tagSize         = 16
	hkdfInfo        = "bastion/payload-encryption/v1"
)

// ErrDecryption is returned for every decryption failure. It never says
// which check failed.
var ErrDecryption = dErrors.New(dErrors.CodeBadRequest, "decryption failed")

// EncryptedPayload is an AEAD ciphertext with its nonce and detached tag.
type EncryptedPayload struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	AuthTag    []byte `json:"auth_tag"`
	Algorithm  string `json:"algorithm"`
}

// Cipher performs AES-256-GCM with a key derived from a master secret.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the data key from masterSecret with HKDF-SHA256.
func NewCipher(masterSecret []byte) (*Cipher, error) {
	if len(masterSecret) < 16 {
		return nil, errors.New("master secret must be at least 16 bytes")
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterSecret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive data key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext bound to aad with a fresh random nonce.
func (c *Cipher) Encrypt(plaintext, aad []byte) (*EncryptedPayload, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - tagSize
	return &EncryptedPayload{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		AuthTag:    sealed[split:],
		Algorithm:  AlgorithmAESGCM,
	}, nil
}

// Decrypt opens payload with aad. Any mismatch yields ErrDecryption.
func (c *Cipher) Decrypt(payload *EncryptedPayload, aad []byte) ([]byte, error) {
	if payload == nil || payload.Algorithm != AlgorithmAESGCM ||
		len(payload.Nonce) != nonceSize || len(payload.AuthTag) != tagSize {
		return nil, ErrDecryption
	}
	sealed := make([]byte, 0, len(payload.Ciphertext)+tagSize)
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.AuthTag...)
	plaintext, err := c.aead.Open(nil, payload.Nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
