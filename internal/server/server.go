// Package server exposes the upload, authentication, and dashboard
// routes over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tepihealth/ucsuploader/internal/auth"
	"github.com/tepihealth/ucsuploader/internal/dashboard"
	"github.com/tepihealth/ucsuploader/internal/model"
	"github.com/tepihealth/ucsuploader/internal/upload"
)

// Uploads larger than this are refused outright.
const maxUploadBytes = 64 << 20

// LoginService authenticates credentials and mints tokens.
type LoginService interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
}

// UploadRunner processes one uploaded CSV buffer.
type UploadRunner interface {
	Run(ctx context.Context, fileName string, data []byte, who upload.Identity) (*upload.Result, error)
}

// RegionStatsReader answers the region totals behind the dashboard's
// upload-stats route.
type RegionStatsReader interface {
	RegionStats(ctx context.Context, region string) (*model.RegionStats, error)
}

// DashboardQueries answers the reporting aggregates.
type DashboardQueries interface {
	CountIndexClients(ctx context.Context, locations []string, start, end time.Time) (map[string][]dashboard.IndexClientRow, error)
	CountElicitations(ctx context.Context, locations []string, start, end time.Time) (map[string][]dashboard.ElicitationRow, error)
	CountOutcomes(ctx context.Context, locations []string, start, end time.Time) (map[string][]dashboard.OutcomeRow, error)
}

// Server wires the handlers to their backing services.
type Server struct {
	Gateway        LoginService
	Uploads        UploadRunner
	Regions        RegionStatsReader
	Dashboard      DashboardQueries
	Secret         []byte
	DashboardUsers map[string]string
	Log            zerolog.Logger
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", s.handleRoot)
			r.Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireToken(s.Secret, s.writeAuthError))
				r.Get("/protected", s.handleProtected)
				r.Post("/", s.handleUpload)
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.BasicAuth("dashboard", s.DashboardUsers))
			r.Post("/index-clients", s.handleIndexClients)
			r.Post("/elicitations", s.handleElicitations)
			r.Post("/outcomes", s.handleOutcomes)
			r.Get("/upload-stats", s.handleRegionStats)
		})
	})

	return r
}
