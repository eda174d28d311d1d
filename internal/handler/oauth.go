package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/iliyamo/family-kitchen/internal/config"
	"github.com/iliyamo/family-kitchen/internal/utils"
)

// stateTTL bounds how long a user may take on the provider's consent page.
const stateTTL = 10 * time.Minute

var errUnknownState = errors.New("unknown or expired oauth state")

// StateStore keeps single-use OAuth state values and the redirect target
// each one was issued for.
type StateStore interface {
	Put(ctx context.Context, state, redirectTo string) error
	Take(ctx context.Context, state string) (string, error)
}

// RedisStateStore shares pending states across server instances.
type RedisStateStore struct{ rdb *redis.Client }

func NewRedisStateStore(rdb *redis.Client) *RedisStateStore { return &RedisStateStore{rdb: rdb} }

func stateKey(state string) string { return "oauth_state:" + utils.HashRefreshRaw(state) }

func (s *RedisStateStore) Put(ctx context.Context, state, redirectTo string) error {
	return s.rdb.Set(ctx, stateKey(state), redirectTo, stateTTL).Err()
}

func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	v, err := s.rdb.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", errUnknownState
	}
	return v, err
}

// MemoryStateStore is used when the server runs without Redis.
type MemoryStateStore struct {
	mu      sync.Mutex
	pending map[string]memoryState
}

type memoryState struct {
	redirect string
	expires  time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{pending: map[string]memoryState{}}
}

func (s *MemoryStateStore) Put(_ context.Context, state, redirectTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.pending {
		if now.After(v.expires) {
			delete(s.pending, k)
		}
	}
	s.pending[stateKey(state)] = memoryState{redirect: redirectTo, expires: now.Add(stateTTL)}
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stateKey(state)
	v, ok := s.pending[k]
	delete(s.pending, k)
	if !ok || time.Now().After(v.expires) {
		return "", errUnknownState
	}
	return v.redirect, nil
}

// OAuthHandler runs the authorization-code flow against one configured
// provider and hands the resulting token pair back to the app in the
// redirect URL fragment.
type OAuthHandler struct {
	cfg    config.OAuthConfig
	auth   *AuthHandler
	states StateStore
	oauth  *oauth2.Config
	log    *zap.Logger
}

func NewOAuthHandler(cfg config.OAuthConfig, auth *AuthHandler, states StateStore, log *zap.Logger) *OAuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OAuthHandler{
		cfg:    cfg,
		auth:   auth,
		states: states,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		log: log.Named("oauth"),
	}
}

func (h *OAuthHandler) enabled(provider string) bool {
	return h.cfg.ClientID != "" && strings.EqualFold(provider, h.cfg.Provider)
}

func (h *OAuthHandler) redirectAllowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	for _, prefix := range h.cfg.AllowedRedirects {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}

// Start handles GET /v1/auth/oauth/:provider?redirect_to=.
func (h *OAuthHandler) Start(c echo.Context) error {
	if !h.enabled(c.Param("provider")) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not configured"})
	}
	target := c.QueryParam("redirect_to")
	if !h.redirectAllowed(target) {
		return badRequest(c, "redirect_to not allowed")
	}
	state, err := utils.RandomState()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "state failed"})
	}
	if err := h.states.Put(c.Request().Context(), state, target); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "state failed"})
	}
	authURL := h.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"))
	return c.Redirect(http.StatusFound, authURL)
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

func (h *OAuthHandler) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (userInfo, error) {
	var info userInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.UserInfoURL, nil)
	if err != nil {
		return info, err
	}
	resp, err := h.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("userinfo: %w", err)
	}
	if info.Subject == "" || info.Email == "" {
		return info, errors.New("userinfo: missing sub or email")
	}
	return info, nil
}

// Callback handles GET /v1/auth/oauth/:provider/callback. On success the
// browser is sent to the original redirect_to with
// #access_token=..&refresh_token=..&expires_at=.. appended.
func (h *OAuthHandler) Callback(c echo.Context) error {
	provider := strings.ToLower(c.Param("provider"))
	if !h.enabled(provider) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not configured"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	target, err := h.states.Take(ctx, c.QueryParam("state"))
	if err != nil {
		return badRequest(c, "invalid state")
	}
	if e := c.QueryParam("error"); e != "" {
		return c.Redirect(http.StatusFound, target+"#"+url.Values{"error": {e}}.Encode())
	}
	tok, err := h.oauth.Exchange(ctx, c.QueryParam("code"))
	if err != nil {
		h.log.Warn("code exchange failed", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "oauth login failed"})
	}
	info, err := h.fetchUserInfo(ctx, tok)
	if err != nil {
		h.log.Warn("userinfo failed", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "oauth login failed"})
	}
	u, err := h.auth.Users.FindOrCreateOAuth(ctx, provider, info.Subject, info.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "link account failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account disabled"})
	}
	pair, err := h.auth.issue(ctx, userPart{ID: u.ID, Email: u.Email})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	frag := url.Values{
		"access_token":  {pair.Access.Token},
		"refresh_token": {pair.Refresh.Token},
		"expires_at":    {strconv.FormatInt(pair.Access.Expires.Unix(), 10)},
	}
	return c.Redirect(http.StatusFound, target+"#"+frag.Encode())
}
