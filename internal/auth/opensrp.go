package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors surfaced to the HTTP layer. The messages are part of
// the client contract and must not change.
var (
	ErrMissingCredentials = errors.New("Username or Password is missing!")
	ErrInvalidCredentials = errors.New("Invalid username or password!")
	ErrNotFacility        = errors.New("User is not allowed to add files!")
	ErrNoToken            = errors.New("Auth token is not supplied.")
)

// Account is the identity OpenSRP vouches for at login. LocationID and
// Facility come from the member's Facility-tagged location.
type Account struct {
	Username         string
	UserBaseEntityID string
	Team             string
	TeamID           string
	LocationID       string
	Facility         string
}

// OpenSRPClient authenticates credentials against an OpenSRP server.
type OpenSRPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenSRPClient builds a client for the given base URL, e.g.
// "http://10.0.0.5:8080".
func NewOpenSRPClient(baseURL string, timeout time.Duration) *OpenSRPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenSRPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type authenticateResponse struct {
	User struct {
		Username     string `json:"username"`
		BaseEntityID string `json:"baseEntityId"`
	} `json:"user"`
	Team struct {
		Team struct {
			TeamName string `json:"teamName"`
			UUID     string `json:"uuid"`
		} `json:"team"`
		Locations []struct {
			UUID    string `json:"uuid"`
			Display string `json:"display"`
			Tags    []struct {
				Name string `json:"name"`
			} `json:"tags"`
		} `json:"locations"`
	} `json:"team"`
}

// Authenticate forwards the credentials as HTTP Basic auth and maps the
// response to an Account. Only members assigned to at least one location
// tagged "Facility" may upload; everyone else gets ErrNotFacility.
func (c *OpenSRPClient) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/opensrp/security/authenticate", nil)
	if err != nil {
		return nil, fmt.Errorf("build authenticate request: %w", err)
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensrp authenticate: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("opensrp authenticate: unexpected status %d", resp.StatusCode)
	}

	var body authenticateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode authenticate response: %w", err)
	}

	for _, loc := range body.Team.Locations {
		for _, tag := range loc.Tags {
			if tag.Name == "Facility" {
				return &Account{
					Username:         body.User.Username,
					UserBaseEntityID: body.User.BaseEntityID,
					Team:             body.Team.Team.TeamName,
					TeamID:           body.Team.Team.UUID,
					LocationID:       loc.UUID,
					Facility:         loc.Display,
				}, nil
			}
		}
	}
	return nil, ErrNotFacility
}
