// Package uuid provides run IDs and placeholder nonces.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NonceLength is the number of hex characters returned by Nonce.
const NonceLength = 12

// Generator creates UUID v7 run IDs and random hex nonces.
type Generator struct{}

// NewUUIDGenerator creates a new Generator.
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string. Run IDs sort by start time.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Nonce returns NonceLength lowercase hex characters taken from a random
// UUIDv4, so the result only ever contains [0-9a-f].
func (Generator) Nonce() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", "")[:NonceLength], nil
}
