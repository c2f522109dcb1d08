// Package clients holds the HTTP clients the order saga uses to reach the
// payment and inventory services.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-saga/internal/metrics"
	"github.com/ariefcatur/go-order-saga/internal/orders"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
	Metrics    *metrics.Metrics
	Logger     *log.Entry
}

// StatusError is a non-2xx answer that was not retried.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

type caller struct {
	name    string
	baseURL string
	http    *http.Client
	opts    Options
}

func newCaller(name, baseURL string, opts Options) caller {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return caller{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		opts:    opts,
	}
}

// retryableStatus reports an answer meaning the request was not handled.
// 502 and 504 may arrive after the upstream applied the POST, so they are
// returned to the caller as they are.
func retryableStatus(code int) bool {
	return code == http.StatusServiceUnavailable
}

// notSent reports a transport failure that happened before the request left,
// so repeating a POST cannot apply it twice.
func notSent(err error) bool {
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// post sends in as JSON and decodes a 2xx body into out. Attempts are bounded
// by Options.MaxRetries with exponential backoff; running out of attempts, or
// a transport failure, comes back as orders.ErrCollaboratorUnavailable.
func (c *caller) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	var (
		attempt   int
		decodeErr error
		url       = c.baseURL + path
	)
	backoff := retry.WithMaxRetries(c.opts.MaxRetries, retry.NewExponential(c.opts.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.opts.Metrics.CollaboratorRetry(c.name)
			c.logger().WithFields(log.Fields{"url": url, "attempt": attempt}).Warn("retrying collaborator call")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if notSent(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil {
				decodeErr = json.NewDecoder(resp.Body).Decode(out)
			}
			return nil
		}

		se := &StatusError{Code: resp.StatusCode, Message: readMessage(resp.Body)}
		if retryableStatus(resp.StatusCode) {
			return retry.RetryableError(se)
		}
		return se
	})

	if err == nil {
		return errors.Wrapf(decodeErr, "%s: decode response", c.name)
	}
	var se *StatusError
	if errors.As(err, &se) && !retryableStatus(se.Code) {
		return se
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "%s", c.name)
	}
	c.logger().WithError(err).WithFields(log.Fields{"url": url, "attempts": attempt}).Error("collaborator unavailable")
	return errors.Wrapf(orders.ErrCollaboratorUnavailable, "%s after %d attempts: %v", c.name, attempt, err)
}

func (c *caller) logger() *log.Entry {
	if c.opts.Logger != nil {
		return c.opts.Logger.WithField("collaborator", c.name)
	}
	return log.WithField("collaborator", c.name)
}

func readMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(b))
}
