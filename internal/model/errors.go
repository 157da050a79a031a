package model

import "errors"

// Sentinel errors for the data layer. Callers branch with errors.Is;
// repository methods wrap these with context via fmt.Errorf("%w").
var (
	// ErrNotInitialized means the storage engine was used before the
	// database image finished loading. Fatal to the operation, not retried.
	ErrNotInitialized = errors.New("database not initialized")

	// ErrNotFound means the target id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input was rejected before any write happened.
	ErrValidation = errors.New("validation failed")

	// ErrMigrationFailed means a schema upgrade step failed; the application
	// must not proceed to seed or serve data.
	ErrMigrationFailed = errors.New("schema migration failed")

	// ErrSnapshotInvalid means a backup payload is missing or malformed.
	// Restore fails on it before mutating live state.
	ErrSnapshotInvalid = errors.New("snapshot missing or malformed")

	// ErrRemoteConflict means the remote rejected a conditional write
	// because the revision token was stale.
	ErrRemoteConflict = errors.New("remote revision conflict")

	// ErrRemoteDisabled means no access token is configured; the mirror is
	// silently inactive.
	ErrRemoteDisabled = errors.New("remote mirror disabled")
)
