package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfigMissing    = errors.New("config missing")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrFileRead         = errors.New("file read error")
	ErrExternalTool     = errors.New("external tool failure")
	ErrCopyFailure      = errors.New("copy failure")
	ErrRecordInsert     = errors.New("record insert failure")
	ErrRecordNotFound   = errors.New("record not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
