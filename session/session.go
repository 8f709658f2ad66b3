// Package session adapts a cookie-backed session store to the small state
// bag the authentication flow needs: the current user, an optional
// post-login return path, and the OpenID handshake sub-state. Session state
// is an explicit Context value loaded per request and saved back; there is
// no ambient session.
package session

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	keyCurrentUser = "current_user"
	keyReturnTo    = "return_to"
	keyOpenID      = "openid"
	keyDevice      = "device"
)

func init() {
	// The OpenID sub-state rides inside the cookie's gob payload.
	gob.Register(map[string]string{})
}

// Manager loads and configures per-visitor sessions.
type Manager struct {
	store sessions.Store
	name  string
}

// Option adjusts a Manager.
type Option func(*Manager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(m *Manager) { m.name = name }
}

// WithStore swaps the backing session store, e.g. for server-side sessions.
func WithStore(store sessions.Store) Option {
	return func(m *Manager) { m.store = store }
}

// NewManager builds a manager over a signed cookie store. The secret signs
// (and authenticates) the cookie payload; browser-session lifetime, HttpOnly
// and SameSite=Lax are the defaults.
func NewManager(secret []byte, opts ...Option) *Manager {
	cookieStore := sessions.NewCookieStore(secret)
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0, // browser session
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	m := &Manager{store: cookieStore, name: "gatehouse_session"}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Load returns the request's session context. A missing, expired, or
// tampered cookie yields a fresh anonymous context, never an error: an
// unverifiable visitor is simply not logged in.
func (m *Manager) Load(r *http.Request) *Context {
	s, _ := m.store.Get(r, m.name)
	return &Context{s: s}
}

// Context is one visitor's session state for the duration of a request.
// Mutations take effect only after Save.
type Context struct {
	s *sessions.Session
}

// CurrentUser returns the authorized user identifier, or "" when anonymous.
func (c *Context) CurrentUser() string { return c.getString(keyCurrentUser) }

// Authenticated reports whether a user identifier is present.
func (c *Context) Authenticated() bool { return c.CurrentUser() != "" }

// SetCurrentUser records a successful authorization.
func (c *Context) SetCurrentUser(user string) { c.s.Values[keyCurrentUser] = user }

// ClearCurrentUser logs the visitor out. Other session state, including any
// return path and handshake state, is untouched.
func (c *Context) ClearCurrentUser() { delete(c.s.Values, keyCurrentUser) }

// ReturnTo returns the recorded post-login redirect path, if any.
func (c *Context) ReturnTo() string { return c.getString(keyReturnTo) }

// SetReturnTo records where to send the visitor after the next login.
func (c *Context) SetReturnTo(path string) { c.s.Values[keyReturnTo] = path }

// ConsumeReturnTo returns the recorded path and clears it. Return targets
// are single-use: one stored path redirects at most one login.
func (c *Context) ConsumeReturnTo() string {
	path := c.getString(keyReturnTo)
	delete(c.s.Values, keyReturnTo)
	return path
}

// OpenID returns the handshake sub-state. The map is owned by the
// relying-party consumer; callers pass it through without inspecting it.
func (c *Context) OpenID() map[string]string {
	if state, ok := c.s.Values[keyOpenID].(map[string]string); ok {
		return state
	}
	return nil
}

// SetOpenID stores the handshake sub-state.
func (c *Context) SetOpenID(state map[string]string) { c.s.Values[keyOpenID] = state }

// ClearOpenID drops the handshake sub-state once the round trip finished.
func (c *Context) ClearOpenID() { delete(c.s.Values, keyOpenID) }

// Device returns the device summary recorded at login time, if any.
func (c *Context) Device() string { return c.getString(keyDevice) }

// SetDevice records a human-readable device summary.
func (c *Context) SetDevice(device string) { c.s.Values[keyDevice] = device }

// Save writes the session back to the response. Callers must treat a save
// failure as the operation failing; an unsaved authorization never happened.
func (c *Context) Save(r *http.Request, w http.ResponseWriter) error {
	return c.s.Save(r, w)
}

func (c *Context) getString(key string) string {
	if v, ok := c.s.Values[key].(string); ok {
		return v
	}
	return ""
}
