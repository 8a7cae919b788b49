package platforms

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
)

// HTTPDoer is the outbound transport. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry holds the closed set of platform formatters and performs the
// outbound call. Delivery failures are reported through the Outcome, never
// as a Go error; errors are reserved for unknown platforms and broken input.
type Registry struct {
	client     HTTPDoer
	formatters map[core.Platform]Formatter
	logger     core.Logger
	userAgent  string
	now        func() time.Time
}

type Option func(*Registry)

func WithHTTPClient(client HTTPDoer) Option {
	return func(r *Registry) {
		if client != nil {
			r.client = client
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithUserAgent(agent string) Option {
	return func(r *Registry) {
		agent = strings.TrimSpace(agent)
		if agent != "" {
			r.userAgent = agent
		}
	}
}

func WithFormatter(formatter Formatter) Option {
	return func(r *Registry) {
		if formatter != nil {
			r.formatters[formatter.Platform()] = formatter
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(options ...Option) *Registry {
	registry := &Registry{
		client:     &http.Client{Timeout: 30 * time.Second},
		formatters: defaultFormatters(),
		userAgent:  "go-relay/1.0",
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		option(registry)
	}
	return registry
}

// Send formats the payload for the platform and posts it to the target URL,
// classifying the result. Context cancellation and timeouts surface as
// retryable outcomes.
func (r *Registry) Send(ctx context.Context, platform core.Platform, target string, payload []byte) core.Outcome {
	if r == nil || r.client == nil {
		return terminalOutcome("platforms: registry is not configured")
	}

	formatter, ok := r.formatters[platform]
	if !ok {
		return terminalOutcome(fmt.Sprintf("platforms: unknown platform %q", platform))
	}

	target = strings.TrimSpace(target)
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return terminalOutcome(fmt.Sprintf("platforms: unresolvable url %q", target))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return terminalOutcome(fmt.Sprintf("platforms: unsupported scheme %q", parsed.Scheme))
	}

	body, contentType, err := formatter.Format(payload)
	if err != nil {
		return terminalOutcome(err.Error())
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return terminalOutcome(fmt.Sprintf("platforms: build request: %v", err))
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("User-Agent", r.userAgent)

	started := r.now()
	response, err := r.client.Do(request)
	latency := r.now().Sub(started)
	if err != nil {
		class := classifyTransportError(err)
		return r.outcomeFrom(class, 0, latency, platform, target)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<16))
		_ = response.Body.Close()
	}()

	var retryAfter *time.Duration
	if response.StatusCode == http.StatusTooManyRequests {
		retryAfter = parseRetryAfter(response.Header.Get("Retry-After"), r.now())
	}
	class := classifyResponse(response.StatusCode, retryAfter)
	return r.outcomeFrom(class, response.StatusCode, latency, platform, target)
}

func (r *Registry) outcomeFrom(class outcomeClass, statusCode int, latency time.Duration, platform core.Platform, target string) core.Outcome {
	outcome := core.Outcome{
		StatusCode: statusCode,
		Reason:     class.reason,
		RetryAfter: class.retryAfter,
		Latency:    latency,
	}
	switch {
	case class.success:
		outcome.Kind = core.OutcomeSuccess
	case class.retryable:
		outcome.Kind = core.OutcomeRetryable
	default:
		outcome.Kind = core.OutcomeTerminal
	}
	if r.logger != nil && outcome.Kind != core.OutcomeSuccess {
		r.logger.Error("delivery attempt failed",
			"platform", string(platform),
			"url", target,
			"status_code", statusCode,
			"kind", string(outcome.Kind),
			"reason", outcome.Reason,
		)
	}
	return outcome
}

func terminalOutcome(reason string) core.Outcome {
	return core.Outcome{Kind: core.OutcomeTerminal, Reason: reason}
}

var _ core.PlatformSender = (*Registry)(nil)
