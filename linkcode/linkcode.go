// Package linkcode issues and redeems short-lived, single-use codes that
// associate an unmapped chat identity with an internal user id.
package linkcode

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// DefaultTTL is the validity window of an issued code.
const DefaultTTL = 10 * time.Minute

// codeBytes yields 6 uppercase hex characters.
const codeBytes = 3

// ErrCodeNotFound is returned when a code is unknown, already used, or
// expired.
var ErrCodeNotFound = errors.New("link code not found or expired")

// Store issues and redeems linking codes. Redeem is single-use: a successful
// redeem invalidates the code.
type Store interface {
	Issue(ctx context.Context, channelID string) (string, error)
	Redeem(ctx context.Context, code string) (string, error)
}

// newCode generates a fixed-length, human-readable code from
// cryptographically strong randomness.
func newCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
