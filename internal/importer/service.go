package importer

// service.go owns the session registry and the import operations exposed to
// the transport layer.
//
// The flow mirrors the four UI steps:
//
//	CreateFromFile  -> session in StageMap (headers parsed, columns guessed)
//	SetMapping      -> StagePreview (batch built once; preview is a slice of it)
//	Confirm         -> StageConfirm (valid contacts handed to the Dispatcher)
//
// CreateFromPaste skips mapping and lands directly in StagePreview.
//
// Mapping parses the retained file text exactly once: the preview rows and
// the full batch come from the same pass, so there is no second read and no
// chance of the preview diverging from what gets dispatched.

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/campaignkit/contact-import/internal/config"
	"github.com/campaignkit/contact-import/internal/contacts"
	"github.com/campaignkit/contact-import/internal/logging"
	"github.com/google/uuid"
)

// Dispatcher receives the valid contacts of a confirmed batch. It owns all
// downstream behavior (queueing, sending, persisting, rate limiting); the
// importer only guarantees it never forwards an invalid record.
type Dispatcher interface {
	Dispatch(ctx context.Context, batchID uuid.UUID, batch []contacts.ContactImport) error
}

// ConfirmResult reports what a confirmed import handed to the dispatcher.
type ConfirmResult struct {
	BatchID    string `json:"batchId"`
	Dispatched int    `json:"dispatched"`
	Skipped    int    `json:"skipped"` // invalid records withheld from the dispatcher
}

// Service manages import sessions and applies the contact mapping rules.
type Service struct {
	cfg        config.ImportConfig
	dispatcher Dispatcher
	limiter    *SessionLimiter

	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time // stubbed in tests
}

// NewService creates a Service with the given import settings and dispatcher.
func NewService(cfg config.ImportConfig, dispatcher Dispatcher) *Service {
	return &Service{
		cfg:        cfg,
		dispatcher: dispatcher,
		limiter:    NewSessionLimiter(cfg.MaxSessions),
		sessions:   make(map[string]*Session),
		now:        time.Now,
	}
}

// Limiter exposes the session limiter for shutdown draining.
func (s *Service) Limiter() *SessionLimiter { return s.limiter }

// CreateFromFile starts an import session from an uploaded CSV file.
//
// The format gate runs before any byte is read: the upload must carry a
// text/csv content type or a .csv filename suffix. The complete file text is
// then assembled (bounded by MaxFileSize), the delimiter sniffed from the
// header line, headers parsed, and likely name/phone columns guessed. The
// session lands in StageMap awaiting the user's column confirmation.
func (s *Service) CreateFromFile(ctx context.Context, fileName, contentType string, r io.Reader) (*State, error) {
	if !isCSVUpload(fileName, contentType) {
		return nil, ErrInvalidFileFormat
	}

	if !s.limiter.TryAcquire() {
		return nil, ErrTooManySessions
	}

	text, err := contacts.ReadAll(r, s.cfg.MaxFileSize)
	if err != nil {
		s.limiter.Release()
		return nil, fmt.Errorf("read upload: %w", err)
	}

	headerLine := firstNonEmptyLine(text)
	delim := contacts.DetectDelimiter(headerLine)

	headers, err := contacts.ParseHeaders(text, delim)
	if err != nil {
		s.limiter.Release()
		return nil, err
	}

	now := s.now()
	sess := newSession(now)
	sess.fileName = fileName
	sess.delimiter = delim
	sess.headers = headers
	sess.text = text

	sess.mu.Lock()
	if err := sess.advance(StageMap); err != nil {
		sess.mu.Unlock()
		s.limiter.Release()
		return nil, err
	}
	state := sess.snapshot()
	sess.mu.Unlock()

	s.register(sess)

	logging.FromContext(ctx).Info("import session created",
		"session_id", sess.id,
		"file", fileName,
		"columns", len(headers),
		"bytes", len(text),
	)
	return state, nil
}

// CreateFromPaste starts an import session from pasted phone numbers.
// There is no mapping step; the batch is built immediately and the session
// lands in StagePreview.
func (s *Service) CreateFromPaste(ctx context.Context, text string) (*State, error) {
	if strings.TrimSpace(text) == "" {
		return nil, contacts.ErrEmptyInput
	}

	if !s.limiter.TryAcquire() {
		return nil, ErrTooManySessions
	}

	batch := contacts.MapDirectInput(text, s.cfg.CountryCode)

	now := s.now()
	sess := newSession(now)

	sess.mu.Lock()
	if err := sess.advance(StagePreview); err != nil {
		sess.mu.Unlock()
		s.limiter.Release()
		return nil, err
	}
	sess.batch = batch
	sess.preview = previewSlice(batch, s.cfg.PreviewRows)
	state := sess.snapshot()
	sess.mu.Unlock()

	s.register(sess)

	logging.FromContext(ctx).Info("paste session created",
		"session_id", sess.id,
		"total", len(batch.Contacts),
		"valid", batch.ValidCount(),
	)
	return state, nil
}

// SetMapping applies the user's column choices and builds the batch.
//
// Both columns are matched against the parsed headers by exact equality; a
// miss fails with *contacts.ColumnNotFoundError and leaves the session in
// its current stage with prior state intact, so the user can pick again.
func (s *Service) SetMapping(ctx context.Context, sessionID, nameColumn, phoneColumn string) (*State, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage != StageMap && sess.stage != StagePreview {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStageTransition, sess.stage, StagePreview)
	}

	batch, err := contacts.MapContacts(sess.text, sess.delimiter, sess.headers, nameColumn, phoneColumn, s.cfg.CountryCode)
	if err != nil {
		return nil, err
	}

	if err := sess.advance(StagePreview); err != nil {
		return nil, err
	}
	sess.nameColumn = nameColumn
	sess.phoneColumn = phoneColumn
	sess.batch = batch
	sess.preview = previewSlice(batch, s.cfg.PreviewRows)
	sess.touch(s.now())

	if batch.SkippedShort > 0 {
		logging.FromContext(ctx).Warn("rows skipped as too short",
			"session_id", sess.id,
			"skipped", batch.SkippedShort,
		)
	}
	logging.FromContext(ctx).Info("mapping applied",
		"session_id", sess.id,
		"name_column", nameColumn,
		"phone_column", phoneColumn,
		"total", len(batch.Contacts),
		"valid", batch.ValidCount(),
	)
	return sess.snapshot(), nil
}

// Confirm hands the valid contacts of the batch to the dispatcher, in row
// order. It refuses batches without a single valid contact. On dispatcher
// failure the session stays in StagePreview so the user can retry.
func (s *Service) Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, sess)
}

func (s *Service) confirm(ctx context.Context, sess *Session) (*ConfirmResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage != StagePreview {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStageTransition, sess.stage, StageConfirm)
	}

	valid := sess.batch.Valid()
	if len(valid) == 0 {
		return nil, ErrNoValidContacts
	}

	batchID := uuid.New()
	if err := s.dispatcher.Dispatch(ctx, batchID, valid); err != nil {
		return nil, fmt.Errorf("dispatch batch: %w", err)
	}

	if err := sess.advance(StageConfirm); err != nil {
		return nil, err
	}
	sess.text = ""
	sess.touch(s.now())
	if !sess.released {
		sess.released = true
		s.limiter.Release()
	}

	logging.FromContext(ctx).Info("batch dispatched",
		"session_id", sess.id,
		"batch_id", batchID.String(),
		"dispatched", len(valid),
		"skipped", sess.batch.InvalidCount(),
	)
	return &ConfirmResult{
		BatchID:    batchID.String(),
		Dispatched: len(valid),
		Skipped:    sess.batch.InvalidCount(),
	}, nil
}

// Get returns a snapshot of the session.
func (s *Service) Get(sessionID string) (*State, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// Discard removes the session and releases its slot. Discarding an unknown
// session returns ErrSessionNotFound; discarding is valid from any stage.
func (s *Service) Discard(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	release := !sess.released
	sess.released = true
	sess.mu.Unlock()

	// Confirmed sessions already released their slot.
	if release {
		s.limiter.Release()
	}

	logging.FromContext(ctx).Info("import session discarded", "session_id", sessionID)
	return nil
}

// StartEvictionLoop evicts idle sessions past their TTL until ctx is
// cancelled. Run it from main as a background goroutine.
func (s *Service) StartEvictionLoop(ctx context.Context) {
	interval := s.cfg.SessionTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired(ctx)
		}
	}
}

// evictExpired drops sessions idle longer than the TTL.
func (s *Service) evictExpired(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.touchedAt.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			expired = append(expired, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.mu.Lock()
		release := !sess.released
		sess.released = true
		sess.mu.Unlock()
		if release {
			s.limiter.Release()
		}
		logging.FromContext(ctx).Info("import session evicted", "session_id", sess.id)
	}
}

// SessionCount returns the number of registered sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) register(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

func (s *Service) lookup(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// isCSVUpload gates uploads by MIME type or filename suffix before any read.
func isCSVUpload(fileName, contentType string) bool {
	if mt, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = mt
	}
	if strings.TrimSpace(strings.ToLower(contentType)) == "text/csv" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(fileName), ".csv")
}

// previewSlice returns the first n contacts of the batch without copying the
// underlying records.
func previewSlice(batch contacts.Batch, n int) []contacts.ContactImport {
	if len(batch.Contacts) <= n {
		return batch.Contacts
	}
	return batch.Contacts[:n]
}

// firstNonEmptyLine returns the first line of text with non-space content,
// used only for delimiter sniffing.
func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			return strings.TrimPrefix(line, "\ufeff")
		}
	}
	return ""
}
