package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidRef = errors.New("invalid content reference")

// newRef returns an opaque key of the form "{owner}/{uuid}". The file name a
// user uploads under never becomes part of the key.
func newRef(ownerID int64) string {
	return fmt.Sprintf("%d/%s", ownerID, uuid.NewString())
}

// parseRef validates ref and splits it into its owner and blob parts.
func parseRef(ref string) (int64, string, error) {
	owner, blob, ok := strings.Cut(ref, "/")
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	ownerID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil || ownerID <= 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if _, err := uuid.Parse(blob); err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return ownerID, blob, nil
}

// OwnerOf reports the owner encoded in ref.
func OwnerOf(ref string) (int64, error) {
	ownerID, _, err := parseRef(ref)
	return ownerID, err
}
