package persistence

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const ivSize = aes.BlockSize

// KeySize is the required length of a configured persistence encryption key.
const KeySize = 32

// fallbackPassphrase/fallbackSalt are fixed, documented (not secret)
// constants used to derive a deterministic key when no explicit
// EncryptionKey is configured (spec.md §9 open question resolution: "key
// lifecycle configured per client" with this as the unconfigured default).
var (
	fallbackPassphrase = []byte("cachify-fallback-passphrase-v1")
	fallbackSalt       = []byte("cachify-fallback-salt-v1")
)

var warnOnce sync.Once

// DefaultKey derives the deterministic fallback key, logging a warning the
// first time it's used per process so silent weak-key use is never fully
// silent.
func DefaultKey() []byte {
	warnOnce.Do(func() {
		slog.Warn("cachify: persistence encryption key not configured, using deterministic fallback key")
	})
	return pbkdf2.Key(fallbackPassphrase, fallbackSalt, 100_000, KeySize, sha256.New)
}

// encrypt AES-256-CBC encrypts plaintext under key with a fresh random IV
// and PKCS#7 padding on the final block.
func encrypt(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// decrypt reverses encrypt, validating and stripping PKCS#7 padding. A wrong
// key surfaces here as either a block-size mismatch or invalid padding.
func decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("persistence: ciphertext is not a non-zero multiple of the block size")
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("persistence: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errors.New("persistence: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
