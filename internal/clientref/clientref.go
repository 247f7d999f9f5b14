// Package clientref issues encrypted, URL-safe reference tokens that carry a
// caller's identity through billing-provider checkout redirects without
// putting a plaintext email in a query string.
package clientref

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// Reference is the payload sealed inside a client reference token.
type Reference struct {
	IssuedAt time.Time `json:"issuedAt"`
	Email    string    `json:"email"`
	Plan     string    `json:"plan,omitempty"`
}

// Codec seals and opens reference tokens with an AEAD. Tokens are
// base64url(nonce || ciphertext); any tampering fails the open.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewCodec creates a codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode seals a reference into a URL-safe token.
func (c *Codec) Encode(ref Reference) (string, error) {
	plaintext, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("failed to marshal reference: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token back into a reference. Tampered or truncated tokens
// are rejected.
func (c *Codec) Decode(token string) (Reference, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Reference{}, fmt.Errorf("malformed token: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return Reference{}, fmt.Errorf("malformed token: too short")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid token: %w", err)
	}

	var ref Reference
	if err := json.Unmarshal(plaintext, &ref); err != nil {
		return Reference{}, fmt.Errorf("invalid token payload: %w", err)
	}
	return ref, nil
}

// Registry keeps issued references in memory so checkout redirects can
// recover identity by token. Lost on restart, like the rest of the
// in-process mirror state.
type Registry struct {
	mu   sync.RWMutex
	refs map[string]Reference
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[string]Reference)}
}

// Put records an issued token.
func (r *Registry) Put(token string, ref Reference) {
	r.mu.Lock()
	r.refs[token] = ref
	r.mu.Unlock()
}

// Get returns the reference recorded for a token.
func (r *Registry) Get(token string) (Reference, bool) {
	r.mu.RLock()
	ref, ok := r.refs[token]
	r.mu.RUnlock()
	return ref, ok
}
