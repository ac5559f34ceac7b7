package core

import "github.com/google/uuid"

// ID is a 128-bit opaque identifier, rendered as canonical UUID text at
// every boundary. The engine never exposes raw bytes.
type ID string

// NewID mints a fresh random identifier.
func NewID() ID {
	return ID(uuid.New().String())
}

// Empty reports whether the identifier has never been assigned.
func (id ID) Empty() bool {
	return id == ""
}

// ParseID validates that s is a well-formed identifier.
func ParseID(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", NewError("core.ParseID", CodeInvalidInput, err)
	}
	return ID(s), nil
}
