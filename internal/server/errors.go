package server

import (
	"errors"
	"net/http"

	"github.com/tepihealth/ucsuploader/internal/auth"
	"github.com/tepihealth/ucsuploader/internal/dedup"
	"github.com/tepihealth/ucsuploader/internal/upload"
)

var (
	errNoFile      = errors.New("No file provided!")
	errInvalidMime = errors.New("Invalid file type. Only CSV files are allowed!")
)

// statusFor maps a failure to its HTTP status. Everything unrecognized
// is a 500.
func statusFor(err error) int {
	var unavailable *dedup.UnavailableError
	var allRejected *upload.AllRowsRejectedError
	var pipeErr *upload.PipelineError

	switch {
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, errNoFile),
		errors.Is(err, errInvalidMime):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotFacility),
		errors.Is(err, auth.ErrNoToken):
		return http.StatusUnauthorized
	case errors.As(err, &unavailable):
		return http.StatusBadGateway
	case errors.As(err, &allRejected):
		return http.StatusBadRequest
	case errors.As(err, &pipeErr) && pipeErr.Phase == "preflight":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError funnels every failure through the response envelope. The
// all-rows-rejected case additionally carries the rejected set so the
// client can show what was refused.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	_, authenticated := auth.FromContext(r.Context())

	if status >= http.StatusInternalServerError {
		s.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		s.Log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}

	// The checker-unavailable message is part of the client contract;
	// strip the pipeline phase prefix.
	message := err.Error()
	var unavailable *dedup.UnavailableError
	if errors.As(err, &unavailable) {
		message = unavailable.Error()
	}

	var allRejected *upload.AllRowsRejectedError
	if errors.As(err, &allRejected) {
		writeJSON(s.Log, w, r, status, false, uploadPayload{
			Authenticated: authenticated,
			Message:       allRejected.Error(),
			Rejected:      true,
			RejectedRows:  allRejected.Rows,
		})
		return
	}

	writeJSON(s.Log, w, r, status, false, authPayload{
		Authenticated: authenticated,
		Message:       message,
	})
}

// writeAuthError renders token middleware failures with the status the
// middleware chose; jwt verification errors have no mapping in statusFor.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.Log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("auth failed")
	writeJSON(s.Log, w, r, status, false, authPayload{Message: err.Error()})
}
