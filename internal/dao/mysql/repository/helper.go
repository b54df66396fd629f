// Package repository implements the data access layer.
// The interfaces live in interfaces.go; each entity's implementation sits in
// its own file.
package repository

import (
	"errors"

	"barmeet_server/pkg/errorx"

	"gorm.io/gorm"
)

// wrapDBError wraps a database error with a business code:
//   - ErrRecordNotFound -> CodeNotFound
//   - anything else -> CodeDBError
func wrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrap(err, errorx.CodeNotFound, msg)
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

// wrapDBErrorf is wrapDBError with fmt.Sprintf-style formatting.
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}
