// Package webhook talks to the intake backend that relays vendor webhooks.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"vocacare-intake-go/internal/envelope"
	"vocacare-intake-go/internal/types"
)

const (
	latestPath   = "/api/get-latest-webhook"
	patientsPath = "/api/patients"

	maxBodyBytes = 8 << 20
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	// MaxRetryTime bounds the backoff used by Ping and FetchPatients.
	MaxRetryTime time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		MaxRetryTime: 12 * time.Second,
	}
}

// FetchLatest issues exactly one GET for the latest delivery. There is no
// retry here; the next poll tick is the retry.
func (c *Client) FetchLatest(ctx context.Context) (*envelope.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+latestPath, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return envelope.Parse(body)
}

// Ping waits for the backend root to answer 2xx, backing off between tries.
func (c *Client) Ping(ctx context.Context) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		_, err = c.do(req)
		return err
	}
	return backoff.Retry(op, c.backoff(ctx))
}

type patientsResponse struct {
	Patients []types.PatientDocument `json:"patients"`
	Count    int                     `json:"count"`
}

// FetchPatients lists stored registrations, newest first. Client errors are
// not retried.
func (c *Client) FetchPatients(ctx context.Context, limit int) ([]types.PatientDocument, error) {
	u, err := url.Parse(c.baseURL + patientsPath)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var out patientsResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		body, err := c.do(req)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode patients: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return nil, fmt.Errorf("fetch patients: %w", err)
	}
	return out.Patients, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxRetryTime
	return backoff.WithContext(bo, ctx)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
