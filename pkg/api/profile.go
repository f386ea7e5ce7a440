package api

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"booknest/pkg/domain"
)

// profileEnvelope accepts both the bare profile and the {"success","user"}
// wrapper some server versions send.
type profileEnvelope struct {
	domain.UserProfile
	User *domain.UserProfile `json:"user"`
}

func (e profileEnvelope) profile() domain.UserProfile {
	if e.User != nil {
		return *e.User
	}
	return e.UserProfile
}

func (c *Client) Profile(ctx context.Context) (domain.UserProfile, error) {
	var env profileEnvelope
	if err := c.get(ctx, "/auth/user/profile/", nil, &env); err != nil {
		return domain.UserProfile{}, err
	}
	return env.profile(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.UserProfile, error) {
	var env profileEnvelope
	if err := c.doJSON(ctx, http.MethodPatch, "/auth/user/profile/", update, &env); err != nil {
		return domain.UserProfile{}, err
	}
	return env.profile(), nil
}

// UploadAvatar sends a new avatar image and returns its URL.
func (c *Client) UploadAvatar(ctx context.Context, filename string, data []byte) (string, error) {
	var resp struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.upload(ctx, "/auth/user/avatar/", "avatar", filename, data, &resp); err != nil {
		return "", err
	}
	return resp.AvatarURL, nil
}

func emptyObject() io.Reader {
	return bytes.NewReader([]byte("{}"))
}
