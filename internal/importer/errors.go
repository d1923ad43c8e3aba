package importer

import "errors"

var (
	// ErrInvalidFileFormat rejects uploads that are not CSV by MIME type or
	// filename suffix. Checked before any byte of the file is read.
	ErrInvalidFileFormat = errors.New("invalid file format, expected a .csv file")

	// ErrStageTransition is wrapped with the offending from/to stages.
	ErrStageTransition = errors.New("import stage transition not allowed")

	// ErrSessionNotFound covers unknown and already-evicted session IDs.
	ErrSessionNotFound = errors.New("import session not found")

	// ErrNoValidContacts blocks confirmation of a batch with nothing to send.
	ErrNoValidContacts = errors.New("no valid contacts in batch")

	// ErrTooManySessions is returned when the concurrent session limit is
	// reached. Clients should discard a session or retry later.
	ErrTooManySessions = errors.New("too many concurrent import sessions, please try again later")
)
