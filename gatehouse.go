// Package gatehouse is a pluggable authentication middleware. It sits in
// front of an application handler and decides, per request, whether the
// visitor carries an authenticated session; if not it drives one of two
// login paths: local credentials or federated identity via the OpenID
// relying-party protocol. Credential storage and verification stay with the
// embedding application, supplied through callbacks.
package gatehouse

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"gatehouse/openid"
	"gatehouse/openid/store"
	"gatehouse/session"
	"gatehouse/views"
)

// Configuration errors. These abort startup: every authenticated path
// depends on them, so there is no degraded mode worth running in.
var (
	ErrNoLoginCallback = errors.New("gatehouse: a login callback is required")
	ErrNoSessionSecret = errors.New("gatehouse: a session signing secret is required")
)

// Authenticator is the application-supplied identity check. Both methods
// resolve to an application-level user identifier; returning "" means the
// attempt is rejected. Rejection is a normal outcome, not an error — errors
// are for backend failures, and both end in a redirect back to the login
// page.
type Authenticator interface {
	// AuthenticatePassword verifies local credentials. Either argument may
	// be empty.
	AuthenticatePassword(ctx context.Context, login, password string) (string, error)

	// AuthenticateIdentity maps a verified OpenID identity URL to a user
	// identifier. It runs only after cryptographic verification succeeded.
	AuthenticateIdentity(ctx context.Context, identityURL string) (string, error)
}

// SignupFunc receives the full submitted form and either creates a user or
// reports why it could not. A nil SignupFunc disables signup entirely: the
// signup routes pass through to the wrapped application.
type SignupFunc func(ctx context.Context, form url.Values) SignupResult

// SignupResult is the outcome of one signup submission: either a user
// identifier, or an ordered list of plain-text error messages to re-render
// the form with. Messages are passed through unescaped; the template layer
// escapes them exactly once.
type SignupResult struct {
	UserID string
	Errors []string
}

// SignupSuccess reports a created user.
func SignupSuccess(userID string) SignupResult { return SignupResult{UserID: userID} }

// SignupFailure reports validation errors, in the order they should render.
func SignupFailure(errs ...string) SignupResult { return SignupResult{Errors: errs} }

// Succeeded reports whether the signup produced a user.
func (r SignupResult) Succeeded() bool { return r.UserID != "" }

// Options configures the middleware.
type Options struct {
	// Secret signs the session cookie. Required unless Sessions is set.
	Secret []byte

	// Login verifies credentials and identities. Required.
	Login Authenticator

	// Signup handles signup submissions. Optional; nil disables signup.
	Signup SignupFunc

	// ViewsDir is where custom login/signup templates are resolved from.
	// Defaults to ./views.
	ViewsDir string

	// Sessions overrides the cookie-backed session manager.
	Sessions *session.Manager

	// Consumer overrides the OpenID relying-party consumer. The default
	// uses in-memory handshake stores, which is only correct for a single
	// process; multi-instance deployments should inject a consumer backed
	// by the Redis or filesystem stores.
	Consumer *openid.Consumer

	// Views overrides the custom-view resolver built from ViewsDir.
	Views views.Resolver

	// Logger receives structured auth events. Defaults to slog.Default.
	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o.Login == nil {
		return ErrNoLoginCallback
	}
	if o.Sessions == nil && len(o.Secret) == 0 {
		return ErrNoSessionSecret
	}
	return nil
}

func (o *Options) sessions() *session.Manager {
	if o.Sessions != nil {
		return o.Sessions
	}
	return session.NewManager(o.Secret)
}

func (o *Options) consumer(logger *slog.Logger) *openid.Consumer {
	if o.Consumer != nil {
		return o.Consumer
	}
	engine := openid.NewEngine(
		store.NewInMemoryDiscoveryCache(5*time.Minute),
		store.NewInMemoryNonceStore(),
	)
	return openid.NewConsumer(engine, logger)
}

func (o *Options) views() views.Resolver {
	if o.Views != nil {
		return o.Views
	}
	dir := o.ViewsDir
	if dir == "" {
		dir = "./views"
	}
	return views.NewDirResolver(dir)
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
