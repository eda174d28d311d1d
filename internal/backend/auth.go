package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/model"
)

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (a authResp) session() *Session {
	return &Session{
		UserID:       a.User.ID,
		Email:        a.User.Email,
		AccessToken:  a.Access.Token,
		RefreshToken: a.Refresh.Token,
		ExpiresAt:    a.Access.Expires,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates a password account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return c.credentialCall(ctx, "/v1/auth/register", email, password)
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return c.credentialCall(ctx, "/v1/auth/login", email, password)
}

func (c *Client) credentialCall(ctx context.Context, path, email, password string) (*Session, error) {
	var out authResp
	resp, err := c.http.R().SetContext(ctx).
		SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).SetError(&errorBody{}).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, asAPIError(resp)
	}
	s := out.session()
	c.replaceSession(s)
	return c.current(), nil
}

// Session returns the current session, renewing the access token first when
// it is about to expire. It returns nil, nil when nobody is signed in.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	s := c.current()
	if s == nil {
		return nil, nil
	}
	if s.stale(time.Now()) && s.RefreshToken != "" {
		if err := c.refresh(ctx); err != nil {
			if errors.Is(err, ErrNoSession) {
				return nil, nil
			}
			return nil, err
		}
	}
	return c.current(), nil
}

// refresh rotates the token pair. Concurrent callers share one request.
// A rejected refresh token drops the session.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		s := c.current()
		if s == nil || s.RefreshToken == "" {
			return nil, ErrNoSession
		}
		var out authResp
		resp, err := c.http.R().SetContext(ctx).
			SetBody(map[string]string{"refresh_token": s.RefreshToken}).
			SetResult(&out).SetError(&errorBody{}).
			Post("/v1/auth/refresh")
		if err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			c.log.Info("refresh token rejected, signing out")
			c.replaceSession(nil)
			return nil, ErrNoSession
		}
		if resp.IsError() {
			return nil, asAPIError(resp)
		}
		c.replaceSession(out.session())
		return nil, nil
	})
	return err
}

// SignOut revokes the refresh token on the server and forgets the session
// locally, even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.current()
	if s == nil {
		return nil
	}
	defer c.replaceSession(nil)
	resp, err := c.http.R().SetContext(ctx).
		SetBody(map[string]string{"refresh_token": s.RefreshToken}).
		SetError(&errorBody{}).
		Post("/v1/auth/logout")
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		return asAPIError(resp)
	}
	return nil
}

// OAuthURL is where a browser starts an OAuth sign-in. The server sends it
// back to redirectTo with the tokens in the URL fragment.
func (c *Client) OAuthURL(provider, redirectTo string) string {
	return c.baseURL + "/v1/auth/oauth/" + url.PathEscape(provider) +
		"?redirect_to=" + url.QueryEscape(redirectTo)
}

// CompleteOAuth installs the tokens from the final OAuth redirect URL and
// resolves the user behind them.
func (c *Client) CompleteOAuth(ctx context.Context, redirected string) (*Session, error) {
	u, err := url.Parse(strings.TrimSpace(redirected))
	if err != nil {
		return nil, fmt.Errorf("oauth redirect: %w", err)
	}
	frag, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, fmt.Errorf("oauth redirect: %w", err)
	}
	if e := frag.Get("error"); e != "" {
		return nil, fmt.Errorf("oauth sign-in failed: %s", e)
	}
	access, refresh := frag.Get("access_token"), frag.Get("refresh_token")
	if access == "" || refresh == "" {
		return nil, errors.New("oauth redirect carries no tokens")
	}
	s := &Session{AccessToken: access, RefreshToken: refresh}
	if sec, err := strconv.ParseInt(frag.Get("expires_at"), 10, 64); err == nil {
		s.ExpiresAt = time.Unix(sec, 0).UTC()
	}
	c.SetSession(s)

	var who struct {
		User struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/auth/session", nil, &who); err != nil {
		c.SetSession(nil)
		return nil, err
	}
	s.UserID, s.Email = who.User.ID, who.User.Email
	c.replaceSession(s)
	return c.current(), nil
}

// Profile returns the caller's profile, or ErrNoProfile before signup has
// been completed.
func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	if c.current() == nil {
		return nil, ErrNoSession
	}
	var p model.Profile
	err := c.call(ctx, http.MethodGet, "/v1/profile", nil, &p)
	if StatusOf(err) == http.StatusNotFound {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile completes signup or edits the profile. The family code cannot
// change once set.
func (c *Client) SaveProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	var out model.Profile
	body := map[string]any{
		"name":        p.Name,
		"role":        p.Role,
		"avatar_url":  p.AvatarURL,
		"language":    p.Language,
		"family_code": p.FamilyCode,
	}
	if err := c.call(ctx, http.MethodPut, "/v1/profile", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLanguage stores the UI language preference.
func (c *Client) UpdateLanguage(ctx context.Context, lang model.Language) error {
	err := c.call(ctx, http.MethodPatch, "/v1/profile/language", map[string]any{"language": lang}, nil)
	if err != nil {
		c.log.Warn("language update failed", zap.Error(err))
	}
	return err
}
