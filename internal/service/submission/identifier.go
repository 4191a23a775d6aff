package submission

import (
	"math/rand"
	"sync"
)

const (
	identifierPrefix  = "10.1234/"
	identifierLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	identifierDigits  = "0123456789"
)

// IdentifierMinter mints pseudo-DOI identifiers of the form
// 10.1234/<6 letters><6 digits>. Randomness comes from the injected source,
// so tests can make minting deterministic. Uniqueness is not guaranteed
// here; the store's unique constraint is the backstop.
//
// *rand.Rand is not safe for concurrent use, so Mint serializes its draws;
// submissions run in parallel and share one minter.
type IdentifierMinter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewIdentifierMinter(rng *rand.Rand) *IdentifierMinter {
	return &IdentifierMinter{rng: rng}
}

// Mint returns a fresh identifier. Safe for concurrent use.
func (m *IdentifierMinter) Mint() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, 0, len(identifierPrefix)+12)
	buf = append(buf, identifierPrefix...)
	for i := 0; i < 6; i++ {
		buf = append(buf, identifierLetters[m.rng.Intn(len(identifierLetters))])
	}
	for i := 0; i < 6; i++ {
		buf = append(buf, identifierDigits[m.rng.Intn(len(identifierDigits))])
	}
	return string(buf)
}
