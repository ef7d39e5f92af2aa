// Package crypto implements the per-user symmetric crypto box: authenticated
// encryption of a user's memory blob with a key that never leaves the
// process. It is grounded on the ChaCha20-Poly1305 seal/open plus
// nonce-prefix-packing idiom used elsewhere in the ecosystem for symmetric
// payload encryption, adapted here to a purely symmetric per-user key
// (no asymmetric key derivation step is needed since the key material is
// already the shared secret).
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// tagPrefix marks ciphertext produced by this package. is_encrypted checks
// only for this prefix; it never attempts a decryption.
const tagPrefix = "nxenc1."

// ErrInvalidCiphertext is returned when decryption fails: malformed input,
// wrong key, or a corrupted/forged ciphertext (MAC failure).
var ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")

// Key is opaque per-user symmetric key material. It is generated once per
// principal on first need and persisted as a string inside the principal
// record; the core never rotates it.
type Key struct {
	raw [chacha20poly1305.KeySize]byte
}

// NewKey generates fresh, random key material.
func NewKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k.raw[:]); err != nil {
		return Key{}, fmt.Errorf("crypto: generate key: %w", err)
	}
	return k, nil
}

// KeyFromString decodes a key previously produced by Key.String.
func KeyFromString(s string) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != chacha20poly1305.KeySize {
		return Key{}, fmt.Errorf("%w: malformed key", ErrInvalidCiphertext)
	}
	var k Key
	copy(k.raw[:], raw)
	return k, nil
}

// String encodes the key for storage inside the principal record.
func (k Key) String() string {
	return base64.RawURLEncoding.EncodeToString(k.raw[:])
}

// Encrypt seals plaintext under key, returning a tagged, URL-safe base64
// string: tagPrefix + base64(nonce || sealed). Encryption is non-deterministic
// (a fresh random nonce is drawn each call).
func Encrypt(key Key, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(key.raw[:])
	if err != nil {
		return "", fmt.Errorf("crypto: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	packed := append(nonce, sealed...)
	return tagPrefix + base64.URLEncoding.EncodeToString(packed), nil
}

// Decrypt opens a ciphertext string produced by Encrypt. It fails with
// ErrInvalidCiphertext on malformed input, MAC failure, or wrong-key use.
func Decrypt(key Key, ciphertext string) ([]byte, error) {
	if !IsEncrypted(ciphertext) {
		return nil, fmt.Errorf("%w: missing tag prefix", ErrInvalidCiphertext)
	}
	packed, err := base64.URLEncoding.DecodeString(ciphertext[len(tagPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	aead, err := chacha20poly1305.New(key.raw[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	if len(packed) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: truncated payload", ErrInvalidCiphertext)
	}
	nonce, sealed := packed[:aead.NonceSize()], packed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether s carries this package's ciphertext tag. It is
// a prefix check only and never attempts decryption, matching the
// "recognizable tag" contract the core relies on to distinguish an opaque
// blob from plaintext without a failed-decrypt round trip.
func IsEncrypted(s string) bool {
	return len(s) > len(tagPrefix) && s[:len(tagPrefix)] == tagPrefix
}
