package rowguard

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for access decisions.
var (
	// ErrNoAccess is returned by write operations when the target document
	// does not resolve to a readable, existing document. Nonexistence and
	// read denial are deliberately indistinguishable so that callers
	// cannot probe for the existence of documents they may not read.
	ErrNoAccess = errors.New("rowguard: no access to or nonexistent document")

	// ErrWriteDenied is returned when the target document exists and is
	// readable but the table's write rule denies the mutation.
	ErrWriteDenied = errors.New("rowguard: write not allowed")

	// ErrInsertDenied is returned when a table's insert rule denies
	// creating a new document.
	ErrInsertDenied = errors.New("rowguard: insert not allowed")

	// ErrNotUnique is returned by Unique when more than one accessible
	// document matches the query.
	ErrNotUnique = errors.New("rowguard: document not unique")

	// ErrNilHandle is returned at wrap time when no underlying database
	// handle was supplied.
	ErrNilHandle = errors.New("rowguard: missing database handle")
)

// NoAccessError reports that a write operation's target document is either
// nonexistent or not readable by the caller. The two cases are conflated on
// purpose; see ErrNoAccess.
type NoAccessError struct {
	id ID
}

// Error returns the error string.
func (e *NoAccessError) Error() string {
	return fmt.Sprintf("rowguard: no access to or nonexistent document %s", e.id)
}

// Is reports whether the target error matches NoAccessError.
// This allows errors.Is(err, ErrNoAccess) to return true.
func (e *NoAccessError) Is(err error) bool {
	return err == ErrNoAccess
}

// ID returns the reference that failed to resolve.
func (e *NoAccessError) ID() ID {
	return e.id
}

// NewNoAccessError returns a new NoAccessError for the given reference.
func NewNoAccessError(id ID) *NoAccessError {
	return &NoAccessError{id: id}
}

// IsNoAccess returns true if the error is a NoAccessError.
func IsNoAccess(err error) bool {
	if err == nil {
		return false
	}
	var e *NoAccessError
	return errors.As(err, &e) || errors.Is(err, ErrNoAccess)
}

// WriteDeniedError reports that a table's write rule denied a mutation of an
// existing, readable document.
type WriteDeniedError struct {
	op string
	id ID
}

// Error returns the error string.
func (e *WriteDeniedError) Error() string {
	return fmt.Sprintf("rowguard: %s of %s not allowed", e.op, e.id)
}

// Is reports whether the target error matches WriteDeniedError.
// This allows errors.Is(err, ErrWriteDenied) to return true.
func (e *WriteDeniedError) Is(err error) bool {
	return err == ErrWriteDenied
}

// Op returns the denied operation ("patch", "replace" or "delete").
func (e *WriteDeniedError) Op() string {
	return e.op
}

// ID returns the reference whose mutation was denied.
func (e *WriteDeniedError) ID() ID {
	return e.id
}

// NewWriteDeniedError returns a new WriteDeniedError for the given
// operation and reference.
func NewWriteDeniedError(op string, id ID) *WriteDeniedError {
	return &WriteDeniedError{op: op, id: id}
}

// IsWriteDenied returns true if the error is a WriteDeniedError.
func IsWriteDenied(err error) bool {
	if err == nil {
		return false
	}
	var e *WriteDeniedError
	return errors.As(err, &e) || errors.Is(err, ErrWriteDenied)
}

// InsertDeniedError reports that a table's insert rule denied creating a
// new document.
type InsertDeniedError struct {
	table string
}

// Error returns the error string.
func (e *InsertDeniedError) Error() string {
	return fmt.Sprintf("rowguard: insert into %s not allowed", e.table)
}

// Is reports whether the target error matches InsertDeniedError.
// This allows errors.Is(err, ErrInsertDenied) to return true.
func (e *InsertDeniedError) Is(err error) bool {
	return err == ErrInsertDenied
}

// Table returns the table the insert targeted.
func (e *InsertDeniedError) Table() string {
	return e.table
}

// NewInsertDeniedError returns a new InsertDeniedError for the given table.
func NewInsertDeniedError(table string) *InsertDeniedError {
	return &InsertDeniedError{table: table}
}

// IsInsertDenied returns true if the error is an InsertDeniedError.
func IsInsertDenied(err error) bool {
	if err == nil {
		return false
	}
	var e *InsertDeniedError
	return errors.As(err, &e) || errors.Is(err, ErrInsertDenied)
}

// NotUniqueError reports that a Unique query matched more than one
// accessible document.
type NotUniqueError struct {
	table string
}

// Error returns the error string.
func (e *NotUniqueError) Error() string {
	return fmt.Sprintf("rowguard: query on %s matched more than one document", e.table)
}

// Is reports whether the target error matches NotUniqueError.
// This allows errors.Is(err, ErrNotUnique) to return true.
func (e *NotUniqueError) Is(err error) bool {
	return err == ErrNotUnique
}

// Table returns the queried table.
func (e *NotUniqueError) Table() string {
	return e.table
}

// NewNotUniqueError returns a new NotUniqueError for the given table.
func NewNotUniqueError(table string) *NotUniqueError {
	return &NotUniqueError{table: table}
}

// IsNotUnique returns true if the error is a NotUniqueError.
func IsNotUnique(err error) bool {
	if err == nil {
		return false
	}
	var e *NotUniqueError
	return errors.As(err, &e) || errors.Is(err, ErrNotUnique)
}

// ConfigError reports an invalid wrap-time configuration, such as a missing
// underlying database handle.
type ConfigError struct {
	msg string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("rowguard: configuration: %s", e.msg)
}

// Is reports whether the target error matches ErrNilHandle for
// missing-handle configuration errors.
func (e *ConfigError) Is(err error) bool {
	return err == ErrNilHandle && e.msg == nilHandleMsg
}

const nilHandleMsg = "missing database handle"

// NewConfigError returns a new ConfigError with the given message.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg: msg}
}

// NewNilHandleError returns the ConfigError raised when the underlying
// database handle is absent at wrap time.
func NewNilHandleError() *ConfigError {
	return &ConfigError{msg: nilHandleMsg}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}
