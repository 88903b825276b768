package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tepihealth/ucsuploader/internal/model"
)

// Fixed identity minted for the development login, which bypasses the
// external identity service entirely.
const (
	devTeam       = "TEPI_Dev"
	devTeamID     = "e26a5499-a4db-4441-b5b1-3bb16d95822c"
	devLocationID = "065fc2b9-15d6-4453-8134-4a3b02efd64e"
	devFacility   = "TEPI Dev Facility"
)

// Authenticator verifies credentials against the external identity
// service. *OpenSRPClient is the production implementation.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Account, error)
}

// UserStatsReader supplies the upload history bundled into the login
// response.
type UserStatsReader interface {
	UserStats(ctx context.Context, username string) (*model.UserStats, error)
}

// Gateway handles logins: it verifies credentials, mints a token, and
// attaches the caller's upload statistics.
type Gateway struct {
	OpenSRP     Authenticator
	Stats       UserStatsReader
	Secret      []byte
	TTL         time.Duration
	DevUsername string
	DevPassword string
	Log         zerolog.Logger
}

// LoginResult carries everything the login response payload needs.
type LoginResult struct {
	Token   string
	Message string
	Stats   *model.UserStats
}

// Login authenticates the credentials and mints a signed token. The dev
// username short-circuits to a fixed identity when its password matches;
// every other username is proxied to the identity service.
func (g *Gateway) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	if g.DevUsername != "" && username == g.DevUsername {
		if password != g.DevPassword {
			return nil, ErrInvalidCredentials
		}
		return g.mint(ctx, &Account{
			Username:         g.DevUsername,
			UserBaseEntityID: g.DevUsername,
			Team:             devTeam,
			TeamID:           devTeamID,
			LocationID:       devLocationID,
			Facility:         devFacility,
		}, "Dev login successful")
	}

	account, err := g.OpenSRP.Authenticate(ctx, username, password)
	if err != nil {
		g.Log.Warn().Err(err).Str("username", username).Msg("login rejected")
		return nil, err
	}
	return g.mint(ctx, account, "Login successful")
}

func (g *Gateway) mint(ctx context.Context, account *Account, message string) (*LoginResult, error) {
	token, err := GenerateToken(g.Secret, &Claims{
		Team:             account.Team,
		TeamID:           account.TeamID,
		ProviderID:       account.Username,
		LocationID:       account.LocationID,
		Facility:         account.Facility,
		UserBaseEntityID: account.UserBaseEntityID,
	}, g.TTL)
	if err != nil {
		return nil, err
	}

	stats, err := g.Stats.UserStats(ctx, account.Username)
	if err != nil {
		return nil, err
	}

	g.Log.Info().
		Str("username", account.Username).
		Str("team", account.Team).
		Str("facility", account.Facility).
		Msg("login successful")

	return &LoginResult{Token: token, Message: message, Stats: stats}, nil
}
