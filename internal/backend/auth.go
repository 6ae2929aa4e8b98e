package backend

import (
	"context"
	"net/http"

	"github.com/geotagger/client/internal/geotagger"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userEnvelope struct {
	User *userResponse `json:"user"`
}

type userResponse struct {
	ID     geotagger.UserID `json:"id"`
	Email  string           `json:"email"`
	Points *int             `json:"points"`
}

func (u userResponse) record() geotagger.SessionRecord {
	rec := geotagger.SessionRecord{Identity: u.ID, Email: u.Email}
	if u.Points != nil && *u.Points >= 0 {
		rec.PointBalance = *u.Points
	}
	return rec
}

// Login exchanges credentials for the user's session record.
func (c *Client) Login(ctx context.Context, email, password string) (geotagger.SessionRecord, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{email, password}, &env); err != nil {
		return geotagger.SessionRecord{}, err
	}
	if env.User == nil || env.User.ID == "" {
		return geotagger.SessionRecord{}, ErrMalformedResponse
	}
	return env.User.record(), nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Register(ctx context.Context, email, password string) (geotagger.SessionRecord, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/register", credentials{email, password}, &env); err != nil {
		return geotagger.SessionRecord{}, err
	}
	if env.User == nil || env.User.ID == "" {
		return geotagger.SessionRecord{}, ErrMalformedResponse
	}
	return env.User.record(), nil
}

func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) error {
	body := struct {
		Email       string `json:"email"`
		NewPassword string `json:"new_password"`
	}{email, newPassword}
	return c.do(ctx, http.MethodPost, "/auth/reset-password", body, nil)
}
