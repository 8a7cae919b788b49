package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
)

type stubDoer struct {
	status   int
	header   http.Header
	err      error
	requests []*http.Request
	bodies   []string
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		d.bodies = append(d.bodies, string(body))
	}
	if d.err != nil {
		return nil, d.err
	}
	header := d.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: d.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("ok")),
	}, nil
}

func TestRegistrySendFormatsPerPlatform(t *testing.T) {
	payload := []byte(`{"order":{"id":"ord-1"}}`)

	cases := []struct {
		name     string
		platform core.Platform
		wantKey  string
	}{
		{name: "slack wraps in text", platform: core.PlatformSlack, wantKey: "text"},
		{name: "discord wraps in content", platform: core.PlatformDiscord, wantKey: "content"},
		{name: "teams wraps in message card", platform: core.PlatformTeams, wantKey: "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doer := &stubDoer{status: http.StatusOK}
			registry := NewRegistry(WithHTTPClient(doer))

			outcome := registry.Send(context.Background(), tc.platform, "https://hooks.example.com/x", payload)
			if outcome.Kind != core.OutcomeSuccess {
				t.Fatalf("expected success, got %s (%s)", outcome.Kind, outcome.Reason)
			}
			if len(doer.bodies) != 1 {
				t.Fatalf("expected one request, got %d", len(doer.bodies))
			}
			var envelope map[string]any
			if err := json.Unmarshal([]byte(doer.bodies[0]), &envelope); err != nil {
				t.Fatalf("body is not json: %v", err)
			}
			if envelope[tc.wantKey] != string(payload) {
				t.Fatalf("expected %q to carry the payload, got %v", tc.wantKey, envelope)
			}
			if got := doer.requests[0].Header.Get("Content-Type"); got != "application/json" {
				t.Fatalf("expected json content type, got %q", got)
			}
		})
	}
}

func TestRegistrySendWebhookPassthrough(t *testing.T) {
	doer := &stubDoer{status: http.StatusNoContent}
	registry := NewRegistry(WithHTTPClient(doer))

	payload := []byte(`<root><a>1</a></root>`)
	outcome := registry.Send(context.Background(), core.PlatformWebhook, "https://endpoint.example.com/hook", payload)
	if outcome.Kind != core.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Kind, outcome.Reason)
	}
	if doer.bodies[0] != string(payload) {
		t.Fatalf("expected passthrough body, got %q", doer.bodies[0])
	}
	if got := doer.requests[0].Header.Get("Content-Type"); got != "application/xml" {
		t.Fatalf("expected xml content type, got %q", got)
	}
}

func TestRegistrySendClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		err    error
		want   core.OutcomeKind
	}{
		{name: "200 succeeds", status: http.StatusOK, want: core.OutcomeSuccess},
		{name: "204 succeeds", status: http.StatusNoContent, want: core.OutcomeSuccess},
		{name: "500 retries", status: http.StatusInternalServerError, want: core.OutcomeRetryable},
		{name: "503 retries", status: http.StatusServiceUnavailable, want: core.OutcomeRetryable},
		{name: "429 retries", status: http.StatusTooManyRequests, want: core.OutcomeRetryable},
		{name: "404 is terminal", status: http.StatusNotFound, want: core.OutcomeTerminal},
		{name: "401 is terminal", status: http.StatusUnauthorized, want: core.OutcomeTerminal},
		{name: "400 is terminal", status: http.StatusBadRequest, want: core.OutcomeTerminal},
		{
			name: "timeout retries",
			err:  &url.Error{Op: "Post", URL: "https://endpoint.example.com", Err: context.DeadlineExceeded},
			want: core.OutcomeRetryable,
		},
		{
			name: "connection refused retries",
			err:  fmt.Errorf("dial tcp: connection refused"),
			want: core.OutcomeRetryable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doer := &stubDoer{status: tc.status, err: tc.err}
			registry := NewRegistry(WithHTTPClient(doer))

			outcome := registry.Send(context.Background(), core.PlatformWebhook, "https://endpoint.example.com/hook", []byte(`{}`))
			if outcome.Kind != tc.want {
				t.Fatalf("expected %s, got %s (%s)", tc.want, outcome.Kind, outcome.Reason)
			}
			if tc.err == nil && outcome.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, outcome.StatusCode)
			}
		})
	}
}

func TestRegistrySendRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		header string
		want   time.Duration
		absent bool
	}{
		{name: "seconds", header: "120", want: 2 * time.Minute},
		{name: "http date", header: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "garbage ignored", header: "soon", absent: true},
		{name: "missing ignored", header: "", absent: true},
		{name: "past date ignored", header: now.Add(-time.Minute).Format(http.TimeFormat), absent: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := http.Header{}
			if tc.header != "" {
				header.Set("Retry-After", tc.header)
			}
			doer := &stubDoer{status: http.StatusTooManyRequests, header: header}
			registry := NewRegistry(
				WithHTTPClient(doer),
				WithClock(func() time.Time { return now }),
			)

			outcome := registry.Send(context.Background(), core.PlatformWebhook, "https://endpoint.example.com/hook", []byte(`{}`))
			if outcome.Kind != core.OutcomeRetryable {
				t.Fatalf("expected retryable, got %s", outcome.Kind)
			}
			if tc.absent {
				if outcome.RetryAfter != nil {
					t.Fatalf("expected no retry-after, got %v", *outcome.RetryAfter)
				}
				return
			}
			if outcome.RetryAfter == nil {
				t.Fatal("expected a retry-after duration")
			}
			if *outcome.RetryAfter != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, *outcome.RetryAfter)
			}
		})
	}
}

func TestRegistrySendBadTargets(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK}
	registry := NewRegistry(WithHTTPClient(doer))

	cases := []struct {
		name     string
		platform core.Platform
		target   string
	}{
		{name: "unknown platform", platform: core.Platform("pager"), target: "https://endpoint.example.com"},
		{name: "missing scheme", platform: core.PlatformWebhook, target: "endpoint.example.com/hook"},
		{name: "unsupported scheme", platform: core.PlatformWebhook, target: "ftp://endpoint.example.com"},
		{name: "empty url", platform: core.PlatformWebhook, target: "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := registry.Send(context.Background(), tc.platform, tc.target, []byte(`{}`))
			if outcome.Kind != core.OutcomeTerminal {
				t.Fatalf("expected terminal, got %s (%s)", outcome.Kind, outcome.Reason)
			}
			if len(doer.requests) != 0 {
				t.Fatalf("expected no request, got %d", len(doer.requests))
			}
		})
	}
}
