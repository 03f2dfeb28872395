package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charlesng35/cmsauth/pkg/crypto"
)

// Supported password hashing algorithms.
const (
	PasswordSHA256   = "sha256"
	PasswordArgon2id = "argon2id"
)

// PasswordHasher derives and checks salted password digests. Hash is deterministic and returns
// lowercase hex of fixed length.
type PasswordHasher interface {
	Hash(salt, password string) string
	Verify(salt, password, stored string) bool
}

// NewPasswordHasher returns the hasher registered for algorithm. An empty name selects sha256.
func NewPasswordHasher(algorithm string) (PasswordHasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", PasswordSHA256:
		return DigestHasher{}, nil
	case PasswordArgon2id:
		return NewArgon2Hasher(crypto.DefaultArgon2Params())
	default:
		return nil, fmt.Errorf("password: unsupported algorithm %q", algorithm)
	}
}

// DigestHasher is SHA-256 over salt followed by password.
type DigestHasher struct{}

func (DigestHasher) Hash(salt, password string) string {
	return hex.EncodeToString(crypto.SaltedDigest(salt, password))
}

func (h DigestHasher) Verify(salt, password, stored string) bool {
	return crypto.EqualConstantTime(h.Hash(salt, password), stored)
}

// Argon2Hasher derives the digest with Argon2id using the user salt.
type Argon2Hasher struct {
	params crypto.Argon2Parameters
}

// NewArgon2Hasher validates params and builds the hasher.
func NewArgon2Hasher(params crypto.Argon2Parameters) (*Argon2Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{params: params}, nil
}

// Hash returns an empty string when the salt is too short to derive a key.
func (h *Argon2Hasher) Hash(salt, password string) string {
	key, err := crypto.DeriveKeyArgon2id([]byte(password), []byte(salt), h.params)
	if err != nil {
		return ""
	}
	return hex.EncodeToString(key)
}

func (h *Argon2Hasher) Verify(salt, password, stored string) bool {
	computed := h.Hash(salt, password)
	if computed == "" {
		return false
	}
	return crypto.EqualConstantTime(computed, stored)
}
