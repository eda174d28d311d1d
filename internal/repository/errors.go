// Package repository defines the MySQL data access layer and the error
// values shared across its repositories. These sentinel values allow
// handlers to distinguish failure scenarios: ErrNotFound for a missing row
// (including rows owned by another family), ErrForbidden when the caller
// lacks the household role for an operation, ErrConflict for uniqueness
// violations and ErrFamilyLocked when a profile tries to move families.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the id within the caller's
// family. Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller's live profile does not allow
// the operation. Handlers translate it into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write collides with existing state.
// Handlers translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrFamilyLocked is returned when a profile update would change an already
// assigned family code.
var ErrFamilyLocked = errors.New("family code cannot be changed")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
