package web

// errors.go provides unified error response handling for the API.
//
// Handlers call respondError with whatever the service returned; the error is
// mapped to a user-facing message, a stable machine code, and an HTTP status,
// while the technical error is logged with the request ID for correlation.

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/campaignkit/contact-import/internal/contacts"
	"github.com/campaignkit/contact-import/internal/importer"
	"github.com/campaignkit/contact-import/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// mapError translates service errors into a client response and status code.
// Unrecognized errors become a generic 500 so internals never leak.
func mapError(err error) (ErrorResponse, int) {
	var columnErr *contacts.ColumnNotFoundError

	switch {
	case errors.Is(err, contacts.ErrEmptyInput):
		return ErrorResponse{
			Error:  "The file or text you provided is empty.",
			Action: "Check the content and try again.",
			Code:   "EMPTY_INPUT",
		}, http.StatusBadRequest

	case errors.Is(err, contacts.ErrFileTooLarge):
		return ErrorResponse{
			Error:  "The file exceeds the maximum allowed size.",
			Action: "Split the file into smaller parts and import them separately.",
			Code:   "FILE_TOO_LARGE",
		}, http.StatusRequestEntityTooLarge

	case errors.Is(err, importer.ErrInvalidFileFormat):
		return ErrorResponse{
			Error:  "Only CSV files are accepted.",
			Action: "Export your contacts as CSV and upload that file.",
			Code:   "INVALID_FILE_FORMAT",
		}, http.StatusUnsupportedMediaType

	case errors.As(err, &columnErr):
		return ErrorResponse{
			Error:  fmt.Sprintf("Column %q was not found in the file.", columnErr.Column),
			Action: "Pick one of the columns listed in the session headers.",
			Code:   "COLUMN_NOT_FOUND",
		}, http.StatusUnprocessableEntity

	case errors.Is(err, importer.ErrSessionNotFound):
		return ErrorResponse{
			Error:  "Import session not found or expired.",
			Action: "Start a new import.",
			Code:   "SESSION_NOT_FOUND",
		}, http.StatusNotFound

	case errors.Is(err, importer.ErrStageTransition):
		return ErrorResponse{
			Error:  "This step is not available in the session's current stage.",
			Action: "Fetch the session to see its current stage.",
			Code:   "INVALID_STAGE",
		}, http.StatusConflict

	case errors.Is(err, importer.ErrNoValidContacts):
		return ErrorResponse{
			Error:  "No valid contacts to import.",
			Action: "Review the phone numbers; none reached the required length.",
			Code:   "NO_VALID_CONTACTS",
		}, http.StatusUnprocessableEntity

	case errors.Is(err, importer.ErrTooManySessions):
		return ErrorResponse{
			Error:  "Too many imports in progress.",
			Action: "Wait for an import to finish or discard one, then retry.",
			Code:   "TOO_MANY_SESSIONS",
		}, http.StatusTooManyRequests

	default:
		return ErrorResponse{
			Error: "An internal error occurred.",
			Code:  "INTERNAL",
		}, http.StatusInternalServerError
	}
}

// respondError logs the technical error and writes the mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	resp, status := mapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", resp.Code,
		"error", err.Error(),
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, resp)
}
