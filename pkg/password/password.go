// Package password hashes and verifies the administrator credential.
//
// Two digest formats exist in the wild: unsalted hex SHA-256 written by earlier site versions,
// and bcrypt. Verification accepts both; new digests use the configured primary format.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names accepted by New.
const (
	AlgorithmBcrypt = "bcrypt"
	AlgorithmSHA256 = "sha256"
)

// Hasher is a one-way hash and compare capability.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	// IsHash reports whether value looks like a digest this hasher produced.
	IsHash(value string) bool
}

// SHA256Hasher produces unsalted hex SHA-256 digests. It exists for byte compatibility with
// stored credentials and is not a password-hashing function.
type SHA256Hasher struct{}

// Hash implements Hasher.
func (SHA256Hasher) Hash(plain string) (string, error) {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:]), nil
}

// Verify implements Hasher.
func (h SHA256Hasher) Verify(plain, digest string) bool {
	computed, _ := h.Hash(plain)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(digest))) == 1
}

// IsHash implements Hasher.
func (SHA256Hasher) IsHash(value string) bool {
	if len(value) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

// BcryptHasher produces salted bcrypt digests.
type BcryptHasher struct {
	Cost int
}

// Hash implements Hasher.
func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(digest), nil
}

// Verify implements Hasher.
func (BcryptHasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// IsHash implements Hasher.
func (BcryptHasher) IsHash(value string) bool {
	if len(value) != 60 {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// CompatHasher hashes with Primary and verifies against Primary or any Legacy format.
type CompatHasher struct {
	Primary Hasher
	Legacy  []Hasher
}

// New returns a CompatHasher whose primary format is algorithm. Both formats always verify.
func New(algorithm string, bcryptCost int) (*CompatHasher, error) {
	bc := BcryptHasher{Cost: bcryptCost}
	switch strings.ToLower(algorithm) {
	case "", AlgorithmBcrypt:
		return &CompatHasher{Primary: bc, Legacy: []Hasher{SHA256Hasher{}}}, nil
	case AlgorithmSHA256:
		return &CompatHasher{Primary: SHA256Hasher{}, Legacy: []Hasher{bc}}, nil
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", algorithm)
	}
}

// Hash implements Hasher.
func (h *CompatHasher) Hash(plain string) (string, error) {
	return h.Primary.Hash(plain)
}

// Verify implements Hasher.
func (h *CompatHasher) Verify(plain, digest string) bool {
	if h.Primary.IsHash(digest) {
		return h.Primary.Verify(plain, digest)
	}
	for _, legacy := range h.Legacy {
		if legacy.IsHash(digest) {
			return legacy.Verify(plain, digest)
		}
	}
	return false
}

// IsHash implements Hasher.
func (h *CompatHasher) IsHash(value string) bool {
	if h.Primary.IsHash(value) {
		return true
	}
	for _, legacy := range h.Legacy {
		if legacy.IsHash(value) {
			return true
		}
	}
	return false
}

// NeedsRehash reports whether digest is a hash but not in the primary format.
func (h *CompatHasher) NeedsRehash(digest string) bool {
	return !h.Primary.IsHash(digest) && h.IsHash(digest)
}
