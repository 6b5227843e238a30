package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// encrypted file layout: magic | salt (16) | nonce (24) | ciphertext
var encryptedMagic = []byte("CBTSV1")

const encryptedSaltLen = 16

// ErrWrongPassphrase is returned when an encrypted store file cannot be
// opened with the supplied passphrase.
var ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted state file")

// Encrypted is a file-backed Store sealed with XChaCha20-Poly1305. The key
// is derived from a passphrase with scrypt; the salt travels in the file
// header so the same passphrase reopens the store anywhere.
type Encrypted struct {
	mu   sync.Mutex
	path string
	salt []byte
	key  []byte
	data map[string][]byte
}

// NewEncrypted opens (or creates) an encrypted store at path using the
// given passphrase.
func NewEncrypted(path, passphrase string) (*Encrypted, error) {
	if passphrase == "" {
		return nil, errors.New("store: passphrase required for encrypted backend")
	}

	e := &Encrypted{path: path, data: make(map[string][]byte)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read state file: %w", err)
		}
		// Fresh store: generate a salt now.
		e.salt = make([]byte, encryptedSaltLen)
		if _, err := rand.Read(e.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		e.key, err = deriveKey(passphrase, e.salt)
		if err != nil {
			return nil, err
		}
		return e, nil
	}

	header := len(encryptedMagic) + encryptedSaltLen + chacha20poly1305.NonceSizeX
	if len(raw) < header || string(raw[:len(encryptedMagic)]) != string(encryptedMagic) {
		return nil, ErrWrongPassphrase
	}
	e.salt = raw[len(encryptedMagic) : len(encryptedMagic)+encryptedSaltLen]
	nonce := raw[len(encryptedMagic)+encryptedSaltLen : header]
	ciphertext := raw[header:]

	e.key, err = deriveKey(passphrase, e.salt)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	if err := json.Unmarshal(plain, &e.data); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return e, nil
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func (e *Encrypted) Get(key string) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (e *Encrypted) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	e.data[key] = cp
	return e.flushLocked()
}

func (e *Encrypted) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.data, key)
	return e.flushLocked()
}

func (e *Encrypted) Close() error { return nil }

func (e *Encrypted) flushLocked() error {
	plain, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(encryptedMagic)+len(e.salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, encryptedMagic...)
	out = append(out, e.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plain, nil)

	return writeFileAtomic(e.path, out)
}
