/*
Package randx provides cryptographically secure random identifiers and names.

It generates connection and message IDs (UUID v4) and the default display
names handed to connections that have not introduced themselves yet.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// GuestNamePrefix is the prefix of generated display names.
	GuestNamePrefix = "Guest"

	// guestNameSpace is the number of distinct numeric suffixes.
	guestNameSpace = 1000
)

// DisplayName returns a random display name such as "Guest042".
// It falls back to the bare prefix if the system random source fails.
func DisplayName() string {
	num, err := rand.Int(rand.Reader, big.NewInt(guestNameSpace))
	if err != nil {
		return GuestNamePrefix
	}
	return fmt.Sprintf("%s%03d", GuestNamePrefix, num.Int64())
}

// ConnectionID returns a new unique identifier for a client connection.
func ConnectionID() string {
	return uuid.New().String()
}

// MessageID returns a new unique identifier for a chat message.
func MessageID() string {
	return uuid.New().String()
}
