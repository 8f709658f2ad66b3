package gatehouse

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gatehouse/openid"
	"gatehouse/session"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_logins_total",
		Help: "Login attempts by method and outcome",
	}, []string{"method", "outcome"})

	signupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_signups_total",
		Help: "Signup submissions by outcome",
	}, []string{"outcome"})
)

// Handler is the authentication middleware. Requests it does not recognize —
// including signup routes when no signup callback is registered — are passed
// to the wrapped next handler.
type Handler struct {
	next     http.Handler
	router   chi.Router
	sessions *session.Manager
	consumer *openid.Consumer
	login    Authenticator
	signup   SignupFunc
	views    viewRenderer
	logger   *slog.Logger
}

// New wraps next with the authentication routes. It fails when the options
// cannot support an authenticated flow at all, so misconfiguration surfaces
// at startup rather than on the first login.
func New(next http.Handler, opts Options) (*Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.NotFoundHandler()
	}

	logger := opts.logger()
	h := &Handler{
		next:     next,
		sessions: opts.sessions(),
		consumer: opts.consumer(logger),
		login:    opts.Login,
		signup:   opts.Signup,
		views:    viewRenderer{resolver: opts.views(), logger: logger},
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Get("/login", h.showLogin)
	r.Post("/login", h.submitLogin)
	r.Get("/logout", h.logout)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.submitSignup)
	r.Post("/openid/initiate", h.openidInitiate)
	r.Get(openid.CallbackPath, h.openidCallback)
	r.NotFound(h.passthrough)
	r.MethodNotAllowed(h.passthrough)
	h.router = r

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// CurrentUser returns the authenticated user identifier for the request, or
// "" for anonymous visitors. Intended for the embedding application.
func (h *Handler) CurrentUser(r *http.Request) string {
	return h.sessions.Load(r).CurrentUser()
}

// RequireAuth guards application handlers: anonymous visitors are sent to
// the login page, and the path they asked for is recorded so a successful
// login returns them there.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := h.sessions.Load(r)
		if sc.Authenticated() {
			next.ServeHTTP(w, r)
			return
		}
		sc.SetReturnTo(r.URL.RequestURI())
		if err := sc.Save(r, w); err != nil {
			h.logger.ErrorContext(r.Context(), "failed to record return path",
				"error", err.Error(),
			)
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

func (h *Handler) passthrough(w http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(w, r)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, "login", nil, builtinLoginPage)
}

func (h *Handler) submitLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	login := r.PostFormValue("login")
	password := r.PostFormValue("password")

	user, err := h.login.AuthenticatePassword(ctx, login, password)
	if err != nil {
		h.logger.ErrorContext(ctx, "login callback failed",
			"login", login,
			"error", err.Error(),
		)
	}
	sc := h.sessions.Load(r)
	if !authorize(sc, user) {
		// Unknown credentials are a silent, recoverable outcome: back to
		// the form, no detail for the visitor.
		loginsTotal.WithLabelValues("password", "failure").Inc()
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	sc.SetDevice(deviceSummary(r))

	loginsTotal.WithLabelValues("password", "success").Inc()
	h.logger.InfoContext(ctx, "login succeeded",
		"user", user,
		"method", "password",
		"device", sc.Device(),
	)
	h.finishLogin(w, r, sc)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sc := h.sessions.Load(r)
	sc.ClearCurrentUser()
	if err := sc.Save(r, w); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to persist logout",
			"error", err.Error(),
		)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	if h.signup == nil {
		h.passthrough(w, r)
		return
	}
	h.views.render(w, r, "signup", signupData{}, builtinSignupPage)
}

func (h *Handler) submitSignup(w http.ResponseWriter, r *http.Request) {
	if h.signup == nil {
		h.passthrough(w, r)
		return
	}
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "malformed signup form", "error", err.Error())
		h.views.render(w, r, "signup", signupData{Errors: []string{"invalid form submission"}}, builtinSignupPage)
		return
	}

	res := h.signup(ctx, r.PostForm)
	if !res.Succeeded() {
		signupsTotal.WithLabelValues("failure").Inc()
		h.views.render(w, r, "signup", signupData{Errors: res.Errors}, builtinSignupPage)
		return
	}

	sc := h.sessions.Load(r)
	if !authorize(sc, res.UserID) {
		signupsTotal.WithLabelValues("failure").Inc()
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	signupsTotal.WithLabelValues("success").Inc()
	h.logger.InfoContext(ctx, "signup succeeded", "user", res.UserID)
	h.finishLogin(w, r, sc)
}

func (h *Handler) openidInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := r.PostFormValue("openid_identifier")

	redirect, state, err := h.consumer.Begin(ctx, identifier, openid.Realm(r), openid.ReturnURL(r))
	if err != nil {
		// Discovery failures and malformed identifiers are recoverable by
		// re-showing the login form, never fatal to the visitor.
		loginsTotal.WithLabelValues("openid", "failure").Inc()
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	sc := h.sessions.Load(r)
	sc.SetOpenID(state)
	if err := sc.Save(r, w); err != nil {
		h.logger.ErrorContext(ctx, "failed to persist handshake state",
			"error", err.Error(),
		)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *Handler) openidCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := h.sessions.Load(r)

	state := sc.OpenID()
	res := h.consumer.Complete(ctx, r.URL.Query(), openid.HandshakeState(state), openid.ReturnURL(r))
	// The handshake is one round trip; its state is spent either way.
	sc.ClearOpenID()

	if res.Succeeded() {
		user, err := h.login.AuthenticateIdentity(ctx, res.Identity)
		if err != nil {
			h.logger.ErrorContext(ctx, "identity callback failed",
				"identity", res.Identity,
				"error", err.Error(),
			)
		}
		if authorize(sc, user) {
			sc.SetDevice(deviceSummary(r))
			loginsTotal.WithLabelValues("openid", "success").Inc()
			h.logger.InfoContext(ctx, "login succeeded",
				"user", user,
				"method", "openid",
				"device", sc.Device(),
			)
			h.finishLogin(w, r, sc)
			return
		}
	}

	loginsTotal.WithLabelValues("openid", "failure").Inc()
	// A callback without prior state changed nothing; saving would hand a
	// fresh session cookie to a visitor who never had one.
	if state != nil {
		if err := sc.Save(r, w); err != nil {
			h.logger.ErrorContext(ctx, "failed to persist session", "error", err.Error())
		}
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// authorize is the single place a session gains a user. An empty identifier
// never authorizes, so callers can branch on the return value.
func authorize(sc *session.Context, user string) bool {
	if user == "" {
		return false
	}
	sc.SetCurrentUser(user)
	return true
}

// finishLogin persists the authorized session and redirects to the recorded
// return path, or / when none was set. The return path is consumed: it
// redirects at most one login.
func (h *Handler) finishLogin(w http.ResponseWriter, r *http.Request, sc *session.Context) {
	target := sc.ConsumeReturnTo()
	if target == "" {
		target = "/"
	}
	if err := sc.Save(r, w); err != nil {
		// Without a persisted session the login never happened; fail closed.
		h.logger.ErrorContext(r.Context(), "failed to persist session", "error", err.Error())
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// deviceSummary renders the visitor's user agent into a short display name.
func deviceSummary(r *http.Request) string {
	ua := useragent.New(r.UserAgent())
	browser, _ := ua.Browser()
	if browser == "" {
		return "unknown device"
	}
	return fmt.Sprintf("%s on %s", browser, ua.OS())
}
