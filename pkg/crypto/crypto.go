package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"math/big"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// RandomAlphanumeric returns n characters drawn uniformly from [a-zA-Z0-9].
func RandomAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("crypto: length must be positive")
	}

	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}

// SaltedDigest returns SHA-256 over salt followed by secret.
func SaltedDigest(salt, secret string) []byte {
	sum := sha256.Sum256([]byte(salt + secret))
	return sum[:]
}

// EqualConstantTime compares two strings without leaking their contents or lengths
// through timing: both sides are first reduced to fixed-size digests.
func EqualConstantTime(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
