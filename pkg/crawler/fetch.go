package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"
)

// outcomeKind classifies one fetch attempt. The retry loop branches on
// this value; per-URL failures never propagate as errors.
type outcomeKind int

const (
	// outcomeSuccess: status 200 with decoded HTML.
	outcomeSuccess outcomeKind = iota
	// outcomeSkip: terminal but not a failure; the URL is marked visited
	// so it is never re-attempted (non-HTML content type, decode failure).
	outcomeSkip
	// outcomeRetryable: 5xx, timeout or transport error; feeds the
	// circuit breaker and is retried with backoff.
	outcomeRetryable
	// outcomeTerminal: 4xx or unclassified status; marked permanently
	// failed with no retry and no breaker feed.
	outcomeTerminal
)

// fetchOutcome is the tagged result of one network attempt.
type fetchOutcome struct {
	kind    outcomeKind
	errKind string
	body    string
}

// fetch performs one attempt against the URL with the per-request timeout
// and classifies the response.
func (c *Crawler) fetch(ctx context.Context, pageURL string) fetchOutcome {
	reqCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fetchOutcome{kind: outcomeTerminal, errKind: "RequestError"}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fetchOutcome{kind: outcomeRetryable, errKind: "Timeout"}
		}
		return fetchOutcome{kind: outcomeRetryable, errKind: "NetworkError"}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		contentType := resp.Header.Get("Content-Type")
		lower := strings.ToLower(contentType)
		if !strings.Contains(lower, "text/html") && !strings.Contains(lower, "application/xhtml+xml") {
			c.logger.Info("skipping non-HTML content", "url", pageURL, "content_type", contentType)
			return fetchOutcome{kind: outcomeSkip}
		}
		reader, err := charset.NewReader(resp.Body, contentType)
		if err != nil {
			c.logger.Warn("failed to decode content", "url", pageURL, "error", err)
			return fetchOutcome{kind: outcomeSkip}
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			// The connection can still fail while the body streams; only
			// genuine decode errors are terminal.
			if isTimeout(err) {
				return fetchOutcome{kind: outcomeRetryable, errKind: "Timeout"}
			}
			var netErr net.Error
			if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				c.logger.Warn("body read interrupted", "url", pageURL, "error", err)
				return fetchOutcome{kind: outcomeRetryable, errKind: "NetworkError"}
			}
			c.logger.Warn("failed to decode content", "url", pageURL, "error", err)
			return fetchOutcome{kind: outcomeSkip}
		}
		return fetchOutcome{kind: outcomeSuccess, body: string(body)}

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return fetchOutcome{kind: outcomeRetryable, errKind: fmt.Sprintf("HTTP %d", resp.StatusCode)}

	default:
		// Client errors and anything unclassified: terminal, no retry.
		return fetchOutcome{kind: outcomeTerminal, errKind: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
