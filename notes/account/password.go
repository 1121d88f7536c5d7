package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// HashParams are the Argon2id parameters used for passwords.
type HashParams struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  int
}

// DefaultHashParams are 4 iterations over 64 MiB with 8 lanes and a 16 byte key.
var DefaultHashParams = HashParams{
	Iterations:  4,
	MemoryKiB:   64 * 1024,
	Parallelism: 8,
	KeyLength:   16,
	SaltLength:  16,
}

// HashPassword derives a hash with a fresh random salt. Both are base64 encoded.
func (p HashParams) HashPassword(password string) (hash, salt string, err error) {
	rawSalt := make([]byte, p.SaltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return p.derive(password, rawSalt), base64.StdEncoding.EncodeToString(rawSalt), nil
}

// VerifyPassword reports whether password matches the stored hash and salt.
func (p HashParams) VerifyPassword(password, hash, salt string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p.derive(password, rawSalt)), []byte(hash)) == 1
}

func (p HashParams) derive(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return base64.StdEncoding.EncodeToString(key)
}
