package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nhle/puttnotify/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a bearer token and the player
// snapshot.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	var result model.LoginResult
	resp, err := c.Post(ctx, "/login", loginRequest{Email: email, Password: password}, &result)
	if err != nil {
		return nil, err
	}

	if resp.NoContent || !result.Success || result.Token == "" {
		message := result.Message
		if message == "" {
			message = "Login failed."
		}
		return nil, &Error{
			Status:  resp.StatusCode,
			Message: message,
			Method:  http.MethodPost,
			Path:    "/login",
		}
	}

	return &result, nil
}

// PlayerData fetches the player's profile and stats.
func (c *Client) PlayerData(ctx context.Context, playerID int64) (*model.Profile, error) {
	var profile model.Profile
	if _, err := c.Get(ctx, fmt.Sprintf("/player/%d/data", playerID), &profile); err != nil {
		return nil, err
	}

	if profile.PlayerID == 0 {
		profile.PlayerID = playerID
	}

	return &profile, nil
}
