package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tepihealth/ucsuploader/internal/auth"
	"github.com/tepihealth/ucsuploader/internal/upload"
)

var allowedUploadMimes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, auth.ErrMissingCredentials)
		return
	}

	res, err := s.Gateway.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(s.Log, w, r, http.StatusOK, true, authPayload{
		Token:         &res.Token,
		Authenticated: true,
		Message:       res.Message,
		Stats:         res.Stats,
	})
}

// handleRoot is an unauthenticated ping. It reports whether a presented
// token decodes without requiring one.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if token := bearerToken(r); token != "" {
		if _, err := auth.ValidateToken(s.Secret, token); err == nil {
			authenticated = true
		}
	}
	writeJSON(s.Log, w, r, http.StatusOK, true, authPayload{
		Authenticated: authenticated,
		Message:       "Root path reached",
	})
}

func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	_, authenticated := auth.FromContext(r.Context())
	writeJSON(s.Log, w, r, http.StatusOK, true, authPayload{
		Authenticated: authenticated,
		Message:       "Protected route has been reached!",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		s.writeError(w, r, auth.ErrNoToken)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, errNoFile)
		return
	}
	defer file.Close()

	if mime := header.Header.Get("Content-Type"); !allowedUploadMimes[mime] {
		s.writeError(w, r, errInvalidMime)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	result, err := s.Uploads.Run(r.Context(), header.Filename, data, upload.Identity{
		ProviderID:       claims.ProviderID,
		Team:             claims.Team,
		TeamID:           claims.TeamID,
		LocationID:       claims.LocationID,
		UserBaseEntityID: claims.UserBaseEntityID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(s.Log, w, r, http.StatusCreated, true, uploadPayload{
		Authenticated: true,
		Message:       "File uploaded, processed, and saved successfully!",
		Rejected:      result.RejectedAny(),
		RejectedRows:  result.Rejected,
		Stats:         result.Stats,
	})
}

type dashboardRequest struct {
	Location  []string `json:"location"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
}

var errBadDashboardRequest = errors.New("location, startDate and endDate are required")

// parseDashboardRequest validates the shared dashboard request body.
// Dates accept both date-only and RFC 3339 forms.
func parseDashboardRequest(r *http.Request) ([]string, time.Time, time.Time, error) {
	var req dashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, time.Time{}, time.Time{}, errBadDashboardRequest
	}
	if len(req.Location) == 0 || req.StartDate == "" || req.EndDate == "" {
		return nil, time.Time{}, time.Time{}, errBadDashboardRequest
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return req.Location, start, end, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func (s *Server) handleIndexClients(w http.ResponseWriter, r *http.Request) {
	locations, start, end, err := parseDashboardRequest(r)
	if err != nil {
		s.writeDashboardError(w, r, err)
		return
	}
	rows, err := s.Dashboard.CountIndexClients(r.Context(), locations, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(s.Log, w, r, http.StatusOK, true, rows)
}

func (s *Server) handleElicitations(w http.ResponseWriter, r *http.Request) {
	locations, start, end, err := parseDashboardRequest(r)
	if err != nil {
		s.writeDashboardError(w, r, err)
		return
	}
	rows, err := s.Dashboard.CountElicitations(r.Context(), locations, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(s.Log, w, r, http.StatusOK, true, rows)
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	locations, start, end, err := parseDashboardRequest(r)
	if err != nil {
		s.writeDashboardError(w, r, err)
		return
	}
	rows, err := s.Dashboard.CountOutcomes(r.Context(), locations, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(s.Log, w, r, http.StatusOK, true, rows)
}

func (s *Server) handleRegionStats(w http.ResponseWriter, r *http.Request) {
	region := strings.TrimSpace(r.URL.Query().Get("region"))
	if region == "" {
		s.writeDashboardError(w, r, errors.New("region query parameter is required"))
		return
	}
	stats, err := s.Regions.RegionStats(r.Context(), region)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(s.Log, w, r, http.StatusOK, true, stats)
}

// writeDashboardError renders dashboard request validation failures,
// which are always 400s.
func (s *Server) writeDashboardError(w http.ResponseWriter, r *http.Request, err error) {
	s.Log.Warn().Err(err).Str("path", r.URL.Path).Msg("bad dashboard request")
	writeJSON(s.Log, w, r, http.StatusBadRequest, false, authPayload{Message: err.Error()})
}

func bearerToken(r *http.Request) string {
	token := r.Header.Get("x-access-token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	return strings.TrimPrefix(token, "Bearer ")
}
