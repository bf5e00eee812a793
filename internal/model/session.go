package model

import "strconv"

// Profile is the cached player snapshot stored alongside the credential.
type Profile struct {
	PlayerID       int64          `json:"player_id"`
	Name           string         `json:"name"`
	Email          string         `json:"email,omitempty"`
	MembershipTier string         `json:"membership_tier,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	Stats          map[string]any `json:"stats,omitempty"`
}

// Credential is the authenticated identity and the bearer token that
// proves it. A Credential value is only handed out when Token is non-empty.
type Credential struct {
	Token    string
	PlayerID int64
	Profile  *Profile
}

// DisplayName returns the best available label for the player.
func (c Credential) DisplayName() string {
	if c.Profile != nil && c.Profile.Name != "" {
		return c.Profile.Name
	}
	return "player " + formatID(c.PlayerID)
}

// LoginResult is the response of the login endpoint.
type LoginResult struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	Player  *Profile `json:"player"`
	Message string   `json:"message,omitempty"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
