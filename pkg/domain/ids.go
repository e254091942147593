package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when an identifier fails to parse at a trust boundary.
var ErrInvalidID = errors.New("invalid id")

// CaseID identifies a case (sak). Valid ids are positive.
type CaseID int64

// ParseCaseID parses a decimal case id.
func ParseCaseID(s string) (CaseID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: case id %q", ErrInvalidID, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: case id must be positive", ErrInvalidID)
	}
	return CaseID(n), nil
}

func (id CaseID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero reports whether the id is unset.
func (id CaseID) IsZero() bool { return id == 0 }

// PersonID is an 11-digit national identity number. The zero value means
// "no person" and marks case-level facts.
type PersonID string

const personIDLength = 11

// ParsePersonID validates the format of a national identity number.
func ParsePersonID(s string) (PersonID, error) {
	if len(s) != personIDLength {
		return "", fmt.Errorf("%w: person id must be %d digits", ErrInvalidID, personIDLength)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", fmt.Errorf("%w: person id must be numeric", ErrInvalidID)
		}
	}
	return PersonID(s), nil
}

func (id PersonID) String() string { return string(id) }

// IsZero reports whether the id is unset.
func (id PersonID) IsZero() bool { return id == "" }

// FactID identifies a single fact across all cases.
type FactID uuid.UUID

// NewFactID returns a fresh random fact id.
func NewFactID() FactID { return FactID(uuid.New()) }

// ParseFactID parses a non-nil UUID.
func ParseFactID(s string) (FactID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return FactID{}, fmt.Errorf("%w: fact id: %v", ErrInvalidID, err)
	}
	if u == uuid.Nil {
		return FactID{}, fmt.Errorf("%w: fact id must not be nil", ErrInvalidID)
	}
	return FactID(u), nil
}

func (id FactID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the nil UUID.
func (id FactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler.
func (id FactID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *FactID) UnmarshalText(b []byte) error {
	parsed, err := ParseFactID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
