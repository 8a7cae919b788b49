package platforms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// classifyResponse folds an HTTP status into a delivery outcome. 2xx is
// success; 5xx and 429 are retryable; every other 4xx is terminal because
// the request itself will not get better on a retry.
func classifyResponse(statusCode int, retryAfter *time.Duration) outcomeClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return outcomeClass{success: true}
	case statusCode == http.StatusTooManyRequests:
		return outcomeClass{
			retryable:  true,
			reason:     "rate limited",
			retryAfter: retryAfter,
		}
	case statusCode >= 500:
		return outcomeClass{
			retryable: true,
			reason:    fmt.Sprintf("server error %d", statusCode),
		}
	default:
		return outcomeClass{
			reason: fmt.Sprintf("rejected with status %d", statusCode),
		}
	}
}

// classifyTransportError decides whether a failed request is worth retrying.
// Unresolvable URLs and unknown hosts are terminal; everything else on the
// network path is transient.
func classifyTransportError(err error) outcomeClass {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && isUnresolvableURL(urlErr) {
		return outcomeClass{reason: "unresolvable url: " + urlErr.Error()}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return outcomeClass{reason: "host not found: " + dnsErr.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeClass{retryable: true, reason: "delivery timed out"}
	}
	return outcomeClass{retryable: true, reason: "network error: " + err.Error()}
}

func isUnresolvableURL(err *url.Error) bool {
	message := err.Error()
	return strings.Contains(message, "unsupported protocol scheme") ||
		strings.Contains(message, "missing protocol scheme") ||
		strings.Contains(message, "invalid URL") ||
		strings.Contains(message, "no Host in request URL")
}

type outcomeClass struct {
	success    bool
	retryable  bool
	reason     string
	retryAfter *time.Duration
}

// parseRetryAfter reads a Retry-After header as either delay seconds or an
// HTTP date. A zero or unparseable value is ignored.
func parseRetryAfter(header string, now time.Time) *time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds <= 0 {
			return nil
		}
		delay := time.Duration(seconds) * time.Second
		return &delay
	}
	at, err := http.ParseTime(header)
	if err != nil {
		return nil
	}
	delay := at.Sub(now)
	if delay <= 0 {
		return nil
	}
	return &delay
}
