// Package crypto implements the symmetric envelope that wraps every
// request and response carried over the message bus.  Payloads are JSON
// encoded, encrypted with AES-256-CBC under a key fetched from the
// secret store at call time, and serialized as "hex(iv):hex(ciphertext)".
//
// CBC without an integrity tag is not authenticated encryption: a
// tampered ciphertext is only detected when padding or JSON parsing
// happens to break.  Every peer service on the bus shares this format,
// so the limitation is accepted here rather than fixed unilaterally.
package crypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrCryptoFailure is the only error the codec returns to callers.
// Detail (short key, malformed wire string, bad padding) is logged
// server-side and never propagated, so that a bus peer cannot learn
// which stage of decryption failed.
var ErrCryptoFailure = errors.New("crypto failure")

const keySize = 32 // AES-256

// KeyProvider supplies the current envelope key.  The codec holds no
// long-term secret itself; implementations are expected to cache with a
// bounded lifetime (see internal/vault).
type KeyProvider interface {
	Key(ctx context.Context) ([]byte, error)
}

// StaticKey is a KeyProvider backed by a fixed byte slice, used in
// tests and in deployments without a secret store.
type StaticKey []byte

func (k StaticKey) Key(context.Context) ([]byte, error) { return []byte(k), nil }

// StaticKeyFromHex decodes a hex-encoded 32-byte key, the form the
// AES_KEY environment variable carries.
func StaticKeyFromHex(s string) (StaticKey, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode aes key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("aes key must be %d bytes, got %d", keySize, len(key))
	}
	return StaticKey(key), nil
}

// Codec encrypts and decrypts bus envelopes.
type Codec struct {
	keys KeyProvider
}

func NewCodec(keys KeyProvider) *Codec { return &Codec{keys: keys} }

// Encrypt marshals v to JSON and returns the wire form
// "hex(iv):hex(ciphertext)" with a fresh random IV.
func (c *Codec) Encrypt(ctx context.Context, v any) (string, error) {
	key, err := c.keys.Key(ctx)
	if err != nil {
		return "", fail("fetch key", err)
	}
	if len(key) != keySize {
		return "", fail("check key", fmt.Errorf("key is %d bytes, want %d", len(key), keySize))
	}

	plain, err := json.Marshal(v)
	if err != nil {
		return "", fail("marshal payload", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fail("init cipher", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fail("generate iv", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt parses the wire form, decrypts it and unmarshals the JSON
// payload into out.
func (c *Codec) Decrypt(ctx context.Context, wire string, out any) error {
	ivHex, ctHex, ok := strings.Cut(wire, ":")
	if !ok {
		return fail("parse wire", errors.New("missing separator"))
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return fail("decode iv", errors.New("bad iv"))
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return fail("decode ciphertext", errors.New("bad ciphertext length"))
	}

	key, err := c.keys.Key(ctx)
	if err != nil {
		return fail("fetch key", err)
	}
	if len(key) != keySize {
		return fail("check key", fmt.Errorf("key is %d bytes, want %d", len(key), keySize))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fail("init cipher", err)
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return fail("unpad", err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return fail("unmarshal payload", err)
	}
	return nil
}

// fail logs the real cause and returns the opaque sentinel.
func fail(op string, err error) error {
	log.Printf("envelope: %s failed: %v", op, err)
	return ErrCryptoFailure
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding byte")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return b[:len(b)-n], nil
}
