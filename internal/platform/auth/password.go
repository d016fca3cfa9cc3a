package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the work factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordHasher hashes and verifies account secrets. Stored digests carry
// their own salt and cost, so the cost here only affects new hashes.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt digest of the given plaintext.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. The comparison is constant
// time and every failure mode collapses to false: callers cannot tell a
// wrong password from a malformed digest.
func (h *PasswordHasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
