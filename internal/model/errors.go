package model

import "github.com/pkg/errors"

var (
	// ErrDirectoryUnavailable watch root or quarantine root cannot be created or accessed.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// ErrSourceMissing the detected file vanished before it could be moved.
	ErrSourceMissing = errors.New("source missing")

	// ErrRelocationFailed the move into quarantine failed (permission, filesystem, collision).
	ErrRelocationFailed = errors.New("relocation failed")

	// ErrNotificationPostFailed posting a user-visible notification failed. Always swallowed.
	ErrNotificationPostFailed = errors.New("notification post failed")

	// ErrAlreadyRunning another agent instance holds the instance lock.
	ErrAlreadyRunning = errors.New("agent already running")
)
