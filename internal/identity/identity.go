// Package identity derives the canonical id of a two-party chat.
//
// A chat between users a and b is stored under "a+b" or "b+a", whichever
// was created first. Both orderings must be probed before a new session is
// created.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Delimiter joins the two participant ids of a chat id.
const Delimiter = "+"

var (
	ErrInvalidID = errors.New("invalid user id")
	ErrSelfChat  = errors.New("cannot start a chat with yourself")
)

// Candidates are the two ids a chat between two users may be stored under.
type Candidates struct {
	Primary  string // initiator+peer
	Reversed string // peer+initiator
}

// ValidateID rejects ids that would make a chat id ambiguous or unusable
// as a store path segment.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, Delimiter) || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidID, id)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidID, id)
		}
	}
	return nil
}

// Resolve returns both candidate chat ids for initiator and peer.
func Resolve(initiator, peer string) (Candidates, error) {
	if err := ValidateID(initiator); err != nil {
		return Candidates{}, err
	}
	if err := ValidateID(peer); err != nil {
		return Candidates{}, err
	}
	if initiator == peer {
		return Candidates{}, ErrSelfChat
	}
	return Candidates{
		Primary:  initiator + Delimiter + peer,
		Reversed: peer + Delimiter + initiator,
	}, nil
}

// Pick chooses the canonical id among the sessions that exist. If both
// exist, two users created the chat concurrently; the lexically smaller id
// wins so both sides converge. Returns "" when neither exists.
func Pick(c Candidates, primaryFound, reversedFound bool) string {
	switch {
	case primaryFound && reversedFound:
		return min(c.Primary, c.Reversed)
	case primaryFound:
		return c.Primary
	case reversedFound:
		return c.Reversed
	default:
		return ""
	}
}

// Split returns the two participant ids of chatID. ok is false unless the
// id has exactly one delimiter and both sides are valid ids.
func Split(chatID string) (a, b string, ok bool) {
	a, b, found := strings.Cut(chatID, Delimiter)
	if !found || ValidateID(a) != nil || ValidateID(b) != nil {
		return "", "", false
	}
	return a, b, true
}

// Involves reports whether userID is one of the two participants of chatID.
// Substring matching would accept "u1" for "u10+u2"; this does not.
func Involves(chatID, userID string) bool {
	a, b, ok := Split(chatID)
	return ok && (a == userID || b == userID)
}

// Peer returns the other participant of chatID.
func Peer(chatID, userID string) (string, bool) {
	a, b, ok := Split(chatID)
	switch {
	case !ok:
		return "", false
	case a == userID:
		return b, true
	case b == userID:
		return a, true
	default:
		return "", false
	}
}
