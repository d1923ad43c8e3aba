package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campaignkit/contact-import/internal/config"
	"github.com/campaignkit/contact-import/internal/contacts"
	"github.com/campaignkit/contact-import/internal/importer"
	"github.com/google/uuid"
)

type noopDispatcher struct {
	calls int
}

func (d *noopDispatcher) Dispatch(_ context.Context, _ uuid.UUID, _ []contacts.ContactImport) error {
	d.calls++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			RequestTimeout: time.Minute,
		},
		Import: config.ImportConfig{
			MaxFileSize: 1 << 20,
			MaxSessions: 10,
			SessionTTL:  time.Minute,
			PreviewRows: 5,
			CountryCode: "55",
		},
		Rate:    config.RateLimitConfig{Enabled: false},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, disp importer.Dispatcher) *Server {
	t.Helper()
	cfg := testConfig()
	svc := importer.NewService(cfg.Import, disp)
	return NewServer(cfg, svc, nil)
}

// multipartCSV builds a multipart body with one file field holding csvData.
func multipartCSV(t *testing.T, fileName, csvData string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(csvData)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) importer.State {
	t.Helper()
	var state importer.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

const uploadCSV = "Nome,Telefone\nAna,11999998888\nBia,999998888\n"

func uploadSession(t *testing.T, srv *Server) importer.State {
	t.Helper()
	body, contentType := multipartCSV(t, "contatos.csv", uploadCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body: %s", rec.Code, rec.Body.String())
	}
	return decodeState(t, rec)
}

func TestHandleImportUpload(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})
	state := uploadSession(t, srv)

	if state.ID == "" {
		t.Error("sessionId missing in response")
	}
	if state.Stage != importer.StageMap {
		t.Errorf("stage = %q, want %q", state.Stage, importer.StageMap)
	}
	if state.GuessedNameColumn != "Nome" || state.GuessedPhoneColumn != "Telefone" {
		t.Errorf("guesses = %q/%q", state.GuessedNameColumn, state.GuessedPhoneColumn)
	}
}

func TestHandleImportUpload_WrongFormat(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})

	body, contentType := multipartCSV(t, "planilha.xlsx", uploadCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
	if !strings.Contains(rec.Body.String(), "INVALID_FILE_FORMAT") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
}

func TestHandleImportUpload_NoFile(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "MISSING_FILE") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
}

func TestImportFlow(t *testing.T) {
	disp := &noopDispatcher{}
	srv := newTestServer(t, disp)

	created := uploadSession(t, srv)
	base := "/api/import/" + created.ID

	rec := doJSON(t, srv, http.MethodPost, base+"/mapping", mappingRequest{
		NameColumn:  "Nome",
		PhoneColumn: "Telefone",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mapping status = %d, body: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.Stage != importer.StagePreview {
		t.Errorf("stage = %q, want %q", state.Stage, importer.StagePreview)
	}
	if state.ValidRows != 1 || state.InvalidRows != 1 {
		t.Errorf("valid/invalid = %d/%d, want 1/1", state.ValidRows, state.InvalidRows)
	}

	rec = doJSON(t, srv, http.MethodPost, base+"/confirm", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var result importer.ConfirmResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Dispatched != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 dispatched / 1 skipped", result)
	}
	if result.BatchID == "" {
		t.Error("batchId missing in response")
	}
	if disp.calls != 1 {
		t.Errorf("dispatcher calls = %d, want 1", disp.calls)
	}
}

func TestHandleConfirm_WrongStage(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})
	created := uploadSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/import/"+created.ID+"/confirm", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if !strings.Contains(rec.Body.String(), "INVALID_STAGE") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
}

func TestHandleSetMapping_ColumnNotFound(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})
	created := uploadSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/import/"+created.ID+"/mapping", mappingRequest{
		NameColumn:  "Cliente",
		PhoneColumn: "Telefone",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if !strings.Contains(rec.Body.String(), "COLUMN_NOT_FOUND") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Cliente") {
		t.Errorf("body should name the missing column: %s", rec.Body.String())
	}
}

func TestHandleImportPaste(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})

	rec := doJSON(t, srv, http.MethodPost, "/api/import/paste", pasteRequest{Text: "11999998888\n123"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.Stage != importer.StagePreview {
		t.Errorf("stage = %q, want %q", state.Stage, importer.StagePreview)
	}
	if state.TotalRows != 2 || state.ValidRows != 1 {
		t.Errorf("rows = %d total / %d valid, want 2/1", state.TotalRows, state.ValidRows)
	}
}

func TestHandleImportPaste_Empty(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})

	rec := doJSON(t, srv, http.MethodPost, "/api/import/paste", pasteRequest{Text: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "EMPTY_INPUT") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})

	rec := doJSON(t, srv, http.MethodGet, "/api/import/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "SESSION_NOT_FOUND") {
		t.Errorf("body missing error code: %s", rec.Body.String())
	}
}

func TestHandleDiscardSession(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})
	created := uploadSession(t, srv)

	rec := doJSON(t, srv, http.MethodDelete, "/api/import/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/import/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after discard = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &noopDispatcher{})

	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "ok" || resp.Dispatcher != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestHandleHealth_DispatcherDown(t *testing.T) {
	cfg := testConfig()
	svc := importer.NewService(cfg.Import, &noopDispatcher{})
	srv := NewServer(cfg, svc, func(context.Context) error {
		return errors.New("connection refused")
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("body should report degraded: %s", rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	svc := importer.NewService(cfg.Import, &noopDispatcher{})
	srv := NewServer(cfg, svc, nil)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", last, http.StatusTooManyRequests)
	}
}
