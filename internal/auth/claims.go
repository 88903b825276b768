package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the token payload minted at login. It embeds
// jwt.RegisteredClaims for the standard iat/exp fields and carries the
// submitter identity stamped onto every accepted upload row.
type Claims struct {
	jwt.RegisteredClaims
	Team             string `json:"team"`
	TeamID           string `json:"teamId"`
	ProviderID       string `json:"providerId"`
	LocationID       string `json:"locationId"`
	Facility         string `json:"facility"`
	UserBaseEntityID string `json:"userBaseEntityId"`
}
