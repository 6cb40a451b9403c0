package crypto

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return NewCodec(StaticKey(key))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   map[string]any
	}{
		{name: "flat object", in: map[string]any{"username": "alice@example.com", "password": "secret1"}},
		{name: "nested object", in: map[string]any{"user": map[string]any{"id": "u-1", "role": "admin"}, "n": float64(42)}},
		{name: "empty object", in: map[string]any{}},
		{name: "unicode", in: map[string]any{"name": "Ngô Thị Ánh", "addr": "Hà Nội"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := c.Encrypt(ctx, tt.in)
			require.NoError(t, err)

			iv, ct, ok := strings.Cut(wire, ":")
			require.True(t, ok, "wire format must be iv:ciphertext")
			assert.Len(t, iv, 32, "iv is 16 bytes hex encoded")
			assert.NotEmpty(t, ct)

			var got map[string]any
			require.NoError(t, c.Decrypt(ctx, wire, &got))
			assert.Equal(t, tt.in, got)
		})
	}
}

func TestEncryptFreshIVPerCall(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()

	a, err := c.Encrypt(ctx, map[string]string{"k": "v"})
	require.NoError(t, err)
	b, err := c.Encrypt(ctx, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "same plaintext must not produce the same wire string twice")
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()

	orig := map[string]any{"username": "alice@example.com", "role": "user"}
	wire, err := c.Encrypt(ctx, orig)
	require.NoError(t, err)

	ivHex, ctHex, _ := strings.Cut(wire, ":")
	ct, err := hex.DecodeString(ctHex)
	require.NoError(t, err)

	// Flip one byte in every ciphertext position; decryption must never
	// silently return the original payload.
	for i := range ct {
		mangled := make([]byte, len(ct))
		copy(mangled, ct)
		mangled[i] ^= 0xff

		var got map[string]any
		err := c.Decrypt(ctx, ivHex+":"+hex.EncodeToString(mangled), &got)
		if err == nil {
			assert.NotEqual(t, orig, got, "tampered byte %d decrypted back to the original", i)
		} else {
			assert.ErrorIs(t, err, ErrCryptoFailure)
		}
	}
}

func TestDecryptMalformedWire(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()

	tests := []struct {
		name string
		wire string
	}{
		{name: "empty", wire: ""},
		{name: "no separator", wire: "deadbeef"},
		{name: "non hex iv", wire: "zz:00112233445566778899aabbccddeeff"},
		{name: "short iv", wire: "dead:00112233445566778899aabbccddeeff"},
		{name: "non hex ciphertext", wire: strings.Repeat("00", 16) + ":zz"},
		{name: "empty ciphertext", wire: strings.Repeat("00", 16) + ":"},
		{name: "ragged ciphertext", wire: strings.Repeat("00", 16) + ":0011"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			err := c.Decrypt(ctx, tt.wire, &got)
			assert.ErrorIs(t, err, ErrCryptoFailure)
		})
	}
}

func TestShortKeyRejected(t *testing.T) {
	c := NewCodec(StaticKey(make([]byte, 16)))
	ctx := context.Background()

	_, err := c.Encrypt(ctx, map[string]string{"k": "v"})
	assert.ErrorIs(t, err, ErrCryptoFailure)

	long := newTestCodec(t)
	wire, err := long.Encrypt(ctx, map[string]string{"k": "v"})
	require.NoError(t, err)

	var got map[string]any
	assert.ErrorIs(t, c.Decrypt(ctx, wire, &got), ErrCryptoFailure)
}
