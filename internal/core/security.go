// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// argonHash is a decoded PHC string:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type argonHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// currentParams are what new hashes use. Stored hashes with different
// parameters are upgraded on the next successful login.
var currentParams = argonHash{memory: 64 * 1024, time: 1, threads: 4}

const (
	argonKeyLen = 32
	saltLen     = 16
)

func (h argonHash) derive(password string) []byte {
	keyLen := uint32(argonKeyLen)
	if len(h.key) > 0 {
		keyLen = uint32(len(h.key)) //nolint:gosec
	}
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, keyLen)
}

func (h argonHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h argonHash) stale() bool {
	return h.memory != currentParams.memory ||
		h.time != currentParams.time ||
		h.threads != currentParams.threads ||
		len(h.key) != argonKeyLen
}

func parseArgonHash(encoded string) (argonHash, error) {
	var h argonHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return h, fmt.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return h, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return h, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("incompatible version: %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return h, fmt.Errorf("invalid params: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, fmt.Errorf("decode salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	return h, nil
}

func HashPassword(password string) (string, error) {
	h := currentParams
	h.salt = make([]byte, saltLen)
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h.key = h.derive(password)
	return h.String(), nil
}

// VerifyPasswordWithRehash checks password against encoded. When it
// matches and encoded uses outdated parameters, a fresh hash is returned
// for the caller to store. A failed rehash is not an error.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return false, "", err
	}

	if subtle.ConstantTimeCompare(h.key, h.derive(password)) != 1 {
		return false, "", nil
	}
	if !h.stale() {
		return true, "", nil
	}

	upgraded, err := HashPassword(password)
	if err != nil {
		return true, "", nil //nolint:nilerr
	}
	return true, upgraded, nil
}

var placeholder = sync.OnceValue(func() string {
	h, err := HashPassword("localmart-placeholder-credential")
	if err != nil {
		panic(fmt.Sprintf("security: generate placeholder hash: %v", err))
	}
	return h
})

// VerifyPasswordTimingSafe verifies against a placeholder hash when the
// account has no password (unknown email, magic-link only account) so the
// response time does not reveal which case applied.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		_, _, _ = VerifyPasswordWithRehash(password, placeholder()) //nolint:errcheck
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encoded)
}

func randomToken(n int, enc *base64.Encoding) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return enc.EncodeToString(buf), nil
}

func GenerateRefreshToken() (string, error) {
	return randomToken(32, base64.URLEncoding)
}

// GenerateMagicToken returns a URL-safe token for a login link query
// parameter.
func GenerateMagicToken() (string, error) {
	return randomToken(24, base64.RawURLEncoding)
}

// HashToken is how refresh and magic-link tokens are stored at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
