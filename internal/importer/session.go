// Package importer drives the contact-import flow: one session per
// user-initiated import, moving through upload, column mapping, preview and
// confirmation, then handing the valid contacts to a campaign dispatcher.
package importer

import (
	"fmt"
	"sync"
	"time"

	"github.com/campaignkit/contact-import/internal/contacts"
	"github.com/google/uuid"
)

// Stage identifies where a session is in the import flow.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageMap     Stage = "map"
	StagePreview Stage = "preview"
	StageConfirm Stage = "confirm"
)

// Allowed transitions. upload->map happens on a successful parse,
// map->preview when both columns are chosen, preview->confirm when the batch
// holds at least one valid contact. Re-mapping from preview is allowed so a
// wrong column choice can be corrected without re-uploading.
var stageTransitions = map[Stage][]Stage{
	StageUpload:  {StageMap, StagePreview},
	StageMap:     {StagePreview},
	StagePreview: {StagePreview, StageConfirm},
	StageConfirm: {},
}

// Session holds the transient state of one import action. Everything in it
// is discarded on Reset or TTL eviction; nothing is durable.
type Session struct {
	mu sync.Mutex

	id        string
	stage     Stage
	createdAt time.Time
	touchedAt time.Time

	// released records that the limiter slot was returned. Confirm, Discard
	// and eviction can interleave; whichever gets here first owns the release.
	released bool

	// Upload-stage state.
	fileName  string
	delimiter rune
	headers   []string
	text      string // complete decoded file text, dropped once mapped

	// Column choices (header names, matched by exact equality).
	nameColumn  string
	phoneColumn string

	// Mapping result, built in a single pass.
	batch   contacts.Batch
	preview []contacts.ContactImport
}

func newSession(now time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		stage:     StageUpload,
		createdAt: now,
		touchedAt: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// advance moves the session to next, enforcing the transition table.
// Callers must hold s.mu.
func (s *Session) advance(next Stage) error {
	for _, allowed := range stageTransitions[s.stage] {
		if allowed == next {
			s.stage = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrStageTransition, s.stage, next)
}

// touch refreshes the TTL clock. Callers must hold s.mu.
func (s *Session) touch(now time.Time) {
	s.touchedAt = now
}

// State is an immutable snapshot of a session for the transport layer.
type State struct {
	ID        string `json:"sessionId"`
	Stage     Stage  `json:"stage"`
	FileName  string `json:"fileName,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`

	Headers []string `json:"headers,omitempty"`

	// Auto-detected column names; empty when no header matched.
	GuessedNameColumn  string `json:"guessedNameColumn,omitempty"`
	GuessedPhoneColumn string `json:"guessedPhoneColumn,omitempty"`

	// Chosen columns, set from the map stage onward.
	NameColumn  string `json:"nameColumn,omitempty"`
	PhoneColumn string `json:"phoneColumn,omitempty"`

	// Batch results, populated from the preview stage onward.
	Preview      []contacts.ContactImport `json:"preview,omitempty"`
	TotalRows    int                      `json:"totalRows"`
	ValidRows    int                      `json:"validRows"`
	InvalidRows  int                      `json:"invalidRows"`
	SkippedShort int                      `json:"skippedShort"`
}

// snapshot builds a State. Callers must hold s.mu.
func (s *Session) snapshot() *State {
	st := &State{
		ID:           s.id,
		Stage:        s.stage,
		FileName:     s.fileName,
		Headers:      s.headers,
		NameColumn:   s.nameColumn,
		PhoneColumn:  s.phoneColumn,
		Preview:      s.preview,
		TotalRows:    len(s.batch.Contacts),
		ValidRows:    s.batch.ValidCount(),
		InvalidRows:  s.batch.InvalidCount(),
		SkippedShort: s.batch.SkippedShort,
	}
	if s.delimiter != 0 {
		st.Delimiter = string(s.delimiter)
	}
	if i := contacts.GuessColumn(s.headers, contacts.NameColumnLabels); i >= 0 {
		st.GuessedNameColumn = s.headers[i]
	}
	if i := contacts.GuessColumn(s.headers, contacts.PhoneColumnLabels); i >= 0 {
		st.GuessedPhoneColumn = s.headers[i]
	}
	return st
}
