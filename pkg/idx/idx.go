// Package idx mints sortable, type-prefixed identifiers such as
// "cli_01J9Z3K6Q4S8T2V7W5X0Y1Z2A3".
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a prefixed ULID. The ULID part keeps ids time ordered inside a
// prefix; the prefix makes a leaked id self-describing in logs.
type ID string

// Prefix names the kind of entity an ID refers to.
type Prefix string

const (
	PrefixUser       Prefix = "usr"
	PrefixClient     Prefix = "cli"
	PrefixCode       Prefix = "code"
	PrefixConnection Prefix = "pcon"
	PrefixRequest    Prefix = "req"
)

// Zero is the empty ID.
const Zero ID = ""

const sep = "_"

// ErrInvalid reports a malformed ID string.
var ErrInvalid = errors.New("idx: invalid id")

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new ID with prefix p stamped at the current time.
func New(p Prefix) ID {
	return NewAt(p, time.Now().UTC())
}

// NewAt returns a new ID stamped at t, useful with an injected clock.
func NewAt(p Prefix, t time.Time) ID {
	mu.Lock()
	u := ulid.MustNew(ulid.Timestamp(t), entropy)
	mu.Unlock()

	return ID(string(p) + sep + u.String())
}

// Parse validates s as a prefixed ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	prefix, rest, ok := strings.Cut(s, sep)
	if !ok || prefix == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(rest); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// Prefix returns the entity prefix, or "" for malformed IDs.
func (id ID) Prefix() Prefix {
	p, _, ok := strings.Cut(string(id), sep)
	if !ok {
		return ""
	}
	return Prefix(p)
}

// Time extracts the embedded timestamp; zero time for malformed IDs.
func (id ID) Time() time.Time {
	_, rest, ok := strings.Cut(string(id), sep)
	if !ok {
		return time.Time{}
	}
	u, err := ulid.ParseStrict(rest)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
