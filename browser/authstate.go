package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// AuthCookie is one persisted session cookie.
type AuthCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"http_only"`
}

// AuthState is the cookie jar written to disk after a successful login, so
// later sessions can skip the login and captcha flow entirely.
type AuthState struct {
	Cookies []AuthCookie `json:"cookies"`
	SavedAt time.Time    `json:"saved_at"`
}

// StateStore reads and writes the auth state file.
type StateStore struct {
	path    string
	enabled bool
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewStateStore builds a StateStore. A disabled store loads and persists
// nothing.
func NewStateStore(path string, enabled bool, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{path: path, enabled: enabled && path != "", logger: logger}
}

// Enabled reports whether persistence is active.
func (st *StateStore) Enabled() bool { return st.enabled }

// Load reads the persisted state. A missing file yields (nil, nil).
func (st *StateStore) Load() (*AuthState, error) {
	if !st.enabled {
		return nil, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth state: %w", err)
	}

	var state AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse auth state: %w", err)
	}
	return &state, nil
}

// Persist writes state to disk, creating parent directories as needed.
func (st *StateStore) Persist(state *AuthState) error {
	if !st.enabled || state == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if dir := filepath.Dir(st.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create auth state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode auth state: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write auth state: %w", err)
	}

	st.logger.Debug("auth state persisted",
		zap.String("path", st.path),
		zap.Int("cookies", len(state.Cookies)))
	return nil
}

// Clear removes the state file. Used when the portal rejects the restored
// session.
func (st *StateStore) Clear() error {
	if !st.enabled {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove auth state: %w", err)
	}
	return nil
}

// ExportCookies reads all cookies from the tab.
func (s *Session) ExportCookies(ctx context.Context) (*AuthState, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, s.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}

	state := &AuthState{SavedAt: time.Now(), Cookies: make([]AuthCookie, 0, len(cookies))}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, AuthCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return state, nil
}

// ImportCookies loads persisted cookies into the tab.
func (s *Session) ImportCookies(ctx context.Context, state *AuthState) error {
	if state == nil || len(state.Cookies) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	err := s.run(ctx, s.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}

	s.logger.Debug("auth cookies restored", zap.Int("cookies", len(params)))
	return nil
}
