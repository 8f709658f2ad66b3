// Package openid implements the relying-party half of an OpenID 2.0 login:
// initiate a handshake by redirecting the user's agent to their identity
// provider, then classify and verify the provider's callback. The low-level
// protocol work is delegated to an external engine; this package owns return
// URL binding and result classification.
package openid

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	handshakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_openid_handshakes_total",
		Help: "OpenID handshake completions by result status",
	}, []string{"status"})

	completeDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gatehouse_openid_complete_duration_ms",
		Help:    "Latency of handshake verification in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Handshake state keys. The orchestrator stores this map in the visitor's
// session between the initiate and callback legs without inspecting it.
const (
	stateClaimedID = "claimed_id"
	stateReturnURL = "return_url"
	stateStartedAt = "started_at"
)

// HandshakeState is the opaque per-handshake state owned by the consumer.
type HandshakeState map[string]string

// Consumer drives one initiate-to-callback round trip against an identity
// provider. It is safe for concurrent use.
type Consumer struct {
	engine Engine
	logger *slog.Logger
	tracer trace.Tracer

	// Discovery for a given identifier is network-bound and identical across
	// concurrent initiations, so collapse them.
	discoveryGroup singleflight.Group
}

// NewConsumer builds a consumer around the given protocol engine.
func NewConsumer(engine Engine, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		engine: engine,
		logger: logger,
		tracer: otel.Tracer("gatehouse/openid"),
	}
}

// Begin starts a handshake for a user-supplied claimed identifier. The
// identifier is untrusted; discovery and validation are the engine's job.
// It returns the provider URL to redirect the user's agent to and the state
// the caller must persist in the session until the callback arrives.
func (c *Consumer) Begin(ctx context.Context, claimedID, realm, returnURL string) (string, HandshakeState, error) {
	ctx, span := c.tracer.Start(ctx, "openid.begin",
		trace.WithAttributes(attribute.String("openid.realm", realm)))
	defer span.End()

	redirect, err, _ := c.discoveryGroup.Do(claimedID+"\x00"+returnURL, func() (any, error) {
		return c.engine.RedirectURL(claimedID, returnURL, realm)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "openid initiate failed",
			"claimed_id", claimedID,
			"error", err.Error(),
		)
		return "", nil, err
	}

	state := HandshakeState{
		stateClaimedID: claimedID,
		stateReturnURL: returnURL,
		stateStartedAt: strconv.FormatInt(time.Now().Unix(), 10),
	}
	return redirect.(string), state, nil
}

// Complete classifies the provider's callback. params is the full callback
// query; returnURL is the callback URL derived from the request that actually
// arrived. Every mismatch, missing precondition, or store error yields
// StatusFailure; only a cryptographically verified positive response yields
// StatusSuccess.
func (c *Consumer) Complete(ctx context.Context, params url.Values, state HandshakeState, returnURL string) Result {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "openid.complete")
	defer span.End()

	res := c.complete(ctx, params, state, returnURL)

	span.SetAttributes(attribute.String("openid.status", res.Status.String()))
	handshakesTotal.WithLabelValues(res.Status.String()).Inc()
	completeDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	if !res.Succeeded() {
		c.logger.WarnContext(ctx, "openid handshake not authorized",
			"status", res.Status.String(),
			"reason", res.Reason,
		)
	}
	return res
}

func (c *Consumer) complete(_ context.Context, params url.Values, state HandshakeState, returnURL string) Result {
	if len(params) == 0 {
		return failure("empty callback parameters")
	}

	switch mode := params.Get("openid.mode"); mode {
	case "cancel":
		return Result{Status: StatusCancel}
	case "setup_needed":
		return Result{Status: StatusSetupNeeded}
	case "error":
		return failure("provider error: " + params.Get("openid.error"))
	case "id_res":
		// OpenID 1.x signals a failed immediate-mode request inside id_res.
		if params.Get("openid.user_setup_url") != "" {
			return Result{Status: StatusSetupNeeded}
		}
	default:
		return failure("unexpected response mode " + strconv.Quote(mode))
	}

	if len(state) == 0 {
		return failure("no handshake in progress")
	}
	if state[stateReturnURL] != returnURL {
		// A different origin answered the callback than initiated it.
		return failure("callback host differs from initiation host")
	}
	if rt := params.Get("openid.return_to"); rt != returnURL {
		return failure("return_to does not match the registered callback")
	}

	requestURL := returnURL + "?" + params.Encode()
	identity, err := c.engine.Verify(requestURL)
	if err != nil {
		return failure("verification failed: " + err.Error())
	}
	if identity == "" {
		return failure("verification produced no identity")
	}
	return Result{Status: StatusSuccess, Identity: identity}
}
