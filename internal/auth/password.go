package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters. 64 MiB / 3 passes / 1 lane follows the
// OWASP password storage guidance; raising them only affects newly
// hashed passwords because each stored hash embeds its own costs.
const (
	hashPasses    = 3
	hashMemoryKiB = 64 * 1024
	hashLanes     = 1
	hashLen       = 32
	hashSaltLen   = 16
)

// phcFieldCount is the number of $-delimited fields in a PHC string:
// $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>
const phcFieldCount = 6

// phc is one decoded password hash: the costs it was derived with plus
// the salt and derived key.
type phc struct {
	memoryKiB uint32
	passes    uint32
	lanes     uint8
	salt      []byte
	key       []byte
}

// HashPassword derives an Argon2id hash of the password and encodes it
// as a PHC string for storage.
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	h := phc{
		memoryKiB: hashMemoryKiB,
		passes:    hashPasses,
		lanes:     hashLanes,
		salt:      salt,
		key:       argon2.IDKey([]byte(password), salt, hashPasses, hashMemoryKiB, hashLanes, hashLen),
	}
	return h.encode(), nil
}

// VerifyPassword reports whether the password matches a stored PHC
// hash. The stored hash's own cost parameters are used, so hashes
// created under older settings keep verifying after a cost bump.
func VerifyPassword(password, encodedHash string) (bool, error) {
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), h.salt, h.passes, h.memoryKiB, h.lanes, uint32(len(h.key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

func (h phc) encode() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memoryKiB, h.passes, h.lanes,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

// parsePHC decodes a stored PHC string. Anything that is not an
// argon2id hash in the expected shape wraps ErrBadPasswordHash.
func parsePHC(encoded string) (phc, error) {
	var h phc

	fields := strings.Split(encoded, "$")
	if len(fields) != phcFieldCount {
		return h, fmt.Errorf("%w: want %d fields, got %d", ErrBadPasswordHash, phcFieldCount, len(fields))
	}
	if fields[1] != "argon2id" {
		return h, fmt.Errorf("%w: unsupported algorithm %q", ErrBadPasswordHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return h, fmt.Errorf("%w: version field %q", ErrBadPasswordHash, fields[2])
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memoryKiB, &h.passes, &h.lanes); err != nil {
		return h, fmt.Errorf("%w: cost field %q", ErrBadPasswordHash, fields[3])
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %v", ErrBadPasswordHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return h, fmt.Errorf("%w: hash: %v", ErrBadPasswordHash, err)
	}
	return h, nil
}
