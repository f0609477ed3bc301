// Package errs defines the error taxonomy propagated through the
// reconciliation pipeline. Recoverable errors never escape a reconcile
// pass; the sync loop logs them via the matching Is* predicate and
// continues.
package errs

import "errors"

// Sentinel errors identifying each category in the taxonomy. Wrap these
// with fmt.Errorf("...: %w", ErrX) at the call site so errors.Is still
// matches after context is added.
var (
	// ErrLabel marks a malformed or incomplete Docker label pair.
	ErrLabel = errors.New("label error")

	// ErrUnsupportedRecordType marks an unrecognized record type label.
	ErrUnsupportedRecordType = errors.New("unsupported record type")

	// ErrRegistryConnection marks an I/O failure talking to the registry.
	// Aborts the current reconcile pass; fatal only at startup.
	ErrRegistryConnection = errors.New("registry connection error")

	// ErrRegistryParse marks a persisted registry entry that could not be
	// decoded back into a RecordIntent. The entry is skipped.
	ErrRegistryParse = errors.New("registry parse error")

	// ErrRecordValidation marks an invariant violation raised by the
	// validator. The offending intent is discarded for this pass.
	ErrRecordValidation = errors.New("record validation error")

	// ErrLockAcquisition marks a failure to acquire the cross-host
	// registry lock within the configured timeout.
	ErrLockAcquisition = errors.New("lock acquisition failure")
)

// IsLabelError reports whether err (or any error it wraps) is ErrLabel.
func IsLabelError(err error) bool { return errors.Is(err, ErrLabel) }

// IsUnsupportedRecordType reports whether err (or any error it wraps) is
// ErrUnsupportedRecordType.
func IsUnsupportedRecordType(err error) bool { return errors.Is(err, ErrUnsupportedRecordType) }

// IsRegistryConnection reports whether err (or any error it wraps) is
// ErrRegistryConnection.
func IsRegistryConnection(err error) bool { return errors.Is(err, ErrRegistryConnection) }

// IsRegistryParse reports whether err (or any error it wraps) is
// ErrRegistryParse.
func IsRegistryParse(err error) bool { return errors.Is(err, ErrRegistryParse) }

// IsRecordValidation reports whether err (or any error it wraps) is
// ErrRecordValidation.
func IsRecordValidation(err error) bool { return errors.Is(err, ErrRecordValidation) }

// IsLockAcquisition reports whether err (or any error it wraps) is
// ErrLockAcquisition.
func IsLockAcquisition(err error) bool { return errors.Is(err, ErrLockAcquisition) }
