// Package runid allocates the identifiers that namespace a batch of candidate files.
package runid

import (
	"fmt"

	"github.com/book-expert/tortoise-client/internal/core"
	"github.com/book-expert/tortoise-client/internal/tts/ttsutils"
	"github.com/google/uuid"
)

// New returns a fresh random (version 4) identifier.
func New() string {
	return uuid.NewString()
}

// Resolve returns supplied unchanged when it is set and a fresh identifier
// otherwise. A supplied identifier is reused verbatim, so candidate files of
// an earlier run with the same identifier are overwritten.
func Resolve(supplied string) (string, error) {
	if supplied == "" {
		return New(), nil
	}

	if !ttsutils.IsSafeName(supplied) {
		return "", fmt.Errorf("%w: run identifier %q is not a valid file name prefix", core.ErrInvalidRequest, supplied)
	}

	return supplied, nil
}
