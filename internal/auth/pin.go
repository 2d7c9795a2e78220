package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, OWASP 2025 recommendation.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

var (
	// ErrNoPin is returned when neither a pin nor a pin hash is configured.
	ErrNoPin = errors.New("auth: no pin configured")

	// ErrInvalidHash is returned for a malformed PHC string.
	ErrInvalidHash = errors.New("auth: invalid pin hash")
)

// HashPin hashes a plaintext pin using Argon2id and returns it in PHC
// string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPin(pin string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(pin), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPinHash checks a plaintext pin against an Argon2id PHC hash string.
func VerifyPinHash(pin, encodedHash string) (bool, error) {
	salt, hash, params, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(pin), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("%w: expected 6 fields", ErrInvalidHash)
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("%w: parsing version: %v", ErrInvalidHash, err)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("%w: parsing parameters: %v", ErrInvalidHash, err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: decoding salt: %v", ErrInvalidHash, err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("%w: decoding hash: %v", ErrInvalidHash, err)
	}

	if len(hash) == 0 {
		return nil, nil, params, fmt.Errorf("%w: empty hash", ErrInvalidHash)
	}

	return salt, hash, params, nil
}

// Verifier checks the authorization header value against the configured pin.
//
// With a pin hash configured, the SHA-256 digest of the last pin that
// verified is remembered so Argon2id runs once rather than per request.
//
// Thread Safety:
//   - Verify is safe for concurrent use.
type Verifier struct {
	pin  []byte
	hash string

	mu       sync.Mutex
	verified [sha256.Size]byte
	memo     bool
}

// NewVerifier creates a Verifier. pinHash takes precedence over pin.
//
// Returns:
//   - *Verifier: Ready verifier
//   - error: ErrNoPin if both are empty, ErrInvalidHash for a malformed hash
func NewVerifier(pin, pinHash string) (*Verifier, error) {
	if pinHash != "" {
		if _, _, _, err := decodePHC(pinHash); err != nil {
			return nil, err
		}
		return &Verifier{hash: pinHash}, nil
	}
	if pin == "" {
		return nil, ErrNoPin
	}
	return &Verifier{pin: []byte(pin)}, nil
}

// Verify reports whether candidate matches the configured pin.
func (v *Verifier) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}

	if v.hash == "" {
		return subtle.ConstantTimeCompare(v.pin, []byte(candidate)) == 1
	}

	digest := sha256.Sum256([]byte(candidate))

	v.mu.Lock()
	if v.memo && subtle.ConstantTimeCompare(v.verified[:], digest[:]) == 1 {
		v.mu.Unlock()
		return true
	}
	v.mu.Unlock()

	ok, err := VerifyPinHash(candidate, v.hash)
	if err != nil || !ok {
		return false
	}

	v.mu.Lock()
	v.verified = digest
	v.memo = true
	v.mu.Unlock()
	return true
}
