package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tepihealth/ucsuploader/internal/model"
)

// envelope is the wire shape of every response.
type envelope struct {
	Success bool   `json:"success"`
	Request string `json:"request"`
	Payload any    `json:"payload"`
}

// authPayload is the payload of login, ping, and error responses. Token
// is null except on a successful login.
type authPayload struct {
	Token         *string          `json:"token"`
	Authenticated bool             `json:"authenticated"`
	Message       string           `json:"message"`
	Stats         *model.UserStats `json:"stats,omitempty"`
}

// uploadPayload is the payload of a processed upload.
type uploadPayload struct {
	Token         *string             `json:"token"`
	Authenticated bool                `json:"authenticated"`
	Message       string              `json:"message"`
	Rejected      bool                `json:"rejected"`
	RejectedRows  []model.RejectedRow `json:"rejectedRows"`
	Stats         *model.UserStats    `json:"stats"`
}

func writeJSON(log zerolog.Logger, w http.ResponseWriter, r *http.Request, status int, success bool, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(envelope{
		Success: success,
		Request: r.URL.Path,
		Payload: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("encode response")
	}
}
