package credential

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	dErrors "bastion/pkg/domain-errors"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	DefaultBcryptCost = 12
)

// PasswordRecord is what gets persisted for a password. Hash is the canonical
// 60 character bcrypt encoding and must never be logged.
type PasswordRecord struct {
	Hash      string    `json:"-"`
	Algorithm string    `json:"algorithm"`
	Cost      int       `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

// Hasher hashes passwords at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, or DefaultBcryptCost when cost is 0.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash produces a salted PasswordRecord.
func (h *Hasher) Hash(password string, now time.Time) (*PasswordRecord, error) {
	if password == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return nil, fmt.Errorf("could not hash password: %w", err)
	}
	return &PasswordRecord{
		Hash:      string(hashed),
		Algorithm: AlgorithmBcrypt,
		Cost:      h.cost,
		CreatedAt: now,
	}, nil
}

// Verify reports whether password matches record. A mismatch is (false, nil);
// a malformed record is an error.
func (h *Hasher) Verify(password string, record *PasswordRecord) (bool, error) {
	if record == nil || record.Algorithm != AlgorithmBcrypt {
		return false, dErrors.New(dErrors.CodeInvalidInput, "unsupported password record")
	}
	err := bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("could not verify password: %w", err)
	}
}
