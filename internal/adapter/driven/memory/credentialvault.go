// Package memory implements driven ports that live only for the lifetime of
// the process.
package memory

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mgrist/acm-roster/internal/domain/model"
	"github.com/mgrist/acm-roster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialVault)(nil)

const (
	keySize = 32 // AES-256
	ivSize  = 12 // GCM standard nonce size
)

// CredentialVault is an in-memory CredentialStore. Values are sealed with
// AES-256-GCM under a key and base IV generated once, on first use, and never
// exported. Each seal uses the base IV XOR a sequence number as its nonce, so
// nonces never repeat under one key. Losing the vault loses the credential.
type CredentialVault struct {
	mu       sync.Mutex
	rand     io.Reader
	aead     cipher.AEAD
	iv       []byte
	seq      uint64
	username []byte // seq (8 bytes) || ciphertext || tag
	password []byte
}

// NewCredentialVault creates an empty vault. No key material exists until the
// first Seal.
func NewCredentialVault() *CredentialVault {
	return &CredentialVault{rand: rand.Reader}
}

// Seal stores or replaces the credential.
func (v *CredentialVault) Seal(_ context.Context, cred model.Credential) error {
	if cred.IsZero() {
		return errors.New("seal credential: username and password are required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.init(); err != nil {
		return err
	}

	username, err := v.seal([]byte(cred.Username))
	if err != nil {
		return fmt.Errorf("seal username: %w", err)
	}
	password, err := v.seal([]byte(cred.Password))
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	v.username, v.password = username, password
	return nil
}

// Open returns the stored credential, or driven.ErrNoCredential.
func (v *CredentialVault) Open(_ context.Context) (model.Credential, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.aead == nil || v.username == nil || v.password == nil {
		return model.Credential{}, driven.ErrNoCredential
	}

	username, err := v.open(v.username)
	if err != nil {
		return model.Credential{}, fmt.Errorf("open username: %w", err)
	}
	password, err := v.open(v.password)
	if err != nil {
		return model.Credential{}, fmt.Errorf("open password: %w", err)
	}

	return model.Credential{Username: string(username), Password: string(password)}, nil
}

// Clear forgets the sealed credential. Key material is kept for the
// vault's lifetime.
func (v *CredentialVault) Clear(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	clear(v.username)
	clear(v.password)
	v.username, v.password = nil, nil
	return nil
}

// init generates the key and base IV on first use.
func (v *CredentialVault) init() error {
	if v.aead != nil {
		return nil
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(v.rand, key); err != nil {
		return fmt.Errorf("rand key: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(v.rand, iv); err != nil {
		return fmt.Errorf("rand iv: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("cipher.NewGCM: %w", err)
	}
	clear(key)

	v.aead = gcm
	v.iv = iv
	return nil
}

// seal encrypts plaintext and prefixes the sequence number it was sealed under.
func (v *CredentialVault) seal(plaintext []byte) ([]byte, error) {
	if v.seq == ^uint64(0) {
		return nil, errors.New("nonce space exhausted")
	}
	v.seq++

	out := make([]byte, 8, 8+len(plaintext)+v.aead.Overhead())
	binary.BigEndian.PutUint64(out, v.seq)
	return v.aead.Seal(out, v.nonce(v.seq), plaintext, nil), nil
}

func (v *CredentialVault) open(sealed []byte) ([]byte, error) {
	if len(sealed) < 8 {
		return nil, errors.New("ciphertext too short")
	}

	seq := binary.BigEndian.Uint64(sealed[:8])
	plaintext, err := v.aead.Open(nil, v.nonce(seq), sealed[8:], nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}

// nonce derives the per-seal nonce: base IV XOR big-endian seq in the low 8 bytes.
func (v *CredentialVault) nonce(seq uint64) []byte {
	n := make([]byte, ivSize)
	copy(n, v.iv)
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	for i := range s {
		n[ivSize-8+i] ^= s[i]
	}
	return n
}
