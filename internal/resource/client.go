// Package resource is the REST client for one inventory resource kind. It
// owns the wire contract: the fixed /api/v1/{slug} paths, field-name
// normalization and the error taxonomy every caller sees.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tphummel/lab_inventory/internal/models"
	"github.com/tphummel/lab_inventory/internal/session"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client performs CRUD for a single kind.
type Client struct {
	kind       models.Kind
	baseURL    string
	httpClient *http.Client
	retry      func() backoff.BackOff
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client, typically one whose transport adds
// and refreshes the Bearer token.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReadRetry retries List and Get on network errors using a fresh
// policy from newPolicy per call. Mutations are never retried.
func WithReadRetry(newPolicy func() backoff.BackOff) Option {
	return func(c *Client) { c.retry = newPolicy }
}

// WithClock overrides the clock used for reference ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for kind rooted at endpoint.
func New(endpoint string, kind models.Kind, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if kind.Slug == "" {
		return nil, fmt.Errorf("kind has no slug")
	}

	c := &Client{
		kind:       kind,
		baseURL:    strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ExponentialReadRetry is the policy invctl uses for --retries: short
// exponential backoff capped at attempts retries.
func ExponentialReadRetry(attempts uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 200 * time.Millisecond
		b.MaxInterval = 2 * time.Second
		b.MaxElapsedTime = 10 * time.Second
		return backoff.WithMaxRetries(b, attempts)
	}
}

// Kind returns the kind this client serves.
func (c *Client) Kind() models.Kind { return c.kind }

func (c *Client) collectionPath() string { return "/api/v1/" + c.kind.Slug }

func (c *Client) itemPath(id string) string {
	return c.collectionPath() + "/" + url.PathEscape(id)
}

// List fetches every item of the kind.
func (c *Client) List(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := c.read(ctx, func() error {
		body, err := c.do(ctx, http.MethodGet, c.collectionPath(), nil, true, http.StatusOK)
		if err != nil {
			return err
		}
		objs, err := decodeObjects(body)
		if err != nil {
			return err
		}
		items = make([]models.Item, 0, len(objs))
		for _, o := range objs {
			items = append(items, Normalize(c.kind, o))
		}
		return nil
	})
	return items, err
}

// Get fetches one item by id.
func (c *Client) Get(ctx context.Context, id string) (models.Item, error) {
	var it models.Item
	err := c.read(ctx, func() error {
		body, err := c.do(ctx, http.MethodGet, c.itemPath(id), nil, false, http.StatusOK)
		if err != nil {
			return err
		}
		obj, err := decodeObject(body)
		if err != nil {
			return err
		}
		it = Normalize(c.kind, obj)
		return nil
	})
	return it, err
}

// Create posts it and returns the stored item. A missing reference id is
// generated from the kind prefix and the current time.
func (c *Client) Create(ctx context.Context, it models.Item) (models.Item, error) {
	if it.ReferenceID == "" {
		it.ReferenceID = models.NewReferenceID(c.kind.Prefix, c.now())
	}
	body, err := c.do(ctx, http.MethodPost, c.collectionPath(), payload(c.kind, it), true,
		http.StatusCreated, http.StatusOK)
	if err != nil {
		return models.Item{}, err
	}
	return c.decodeStored(body, it)
}

// Update replaces the fields of item id.
func (c *Client) Update(ctx context.Context, id string, it models.Item) (models.Item, error) {
	body, err := c.do(ctx, http.MethodPut, c.itemPath(id), payload(c.kind, it), false, http.StatusOK)
	if err != nil {
		return models.Item{}, err
	}
	if it.ID == "" {
		it.ID = id
	}
	return c.decodeStored(body, it)
}

// Delete removes item id. 200 and 204 both count as success.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.itemPath(id), nil, false, http.StatusNoContent, http.StatusOK)
	return err
}

// decodeStored normalizes a mutation response. Some backends answer with an
// empty body, in which case the submitted item stands in.
func (c *Client) decodeStored(body []byte, submitted models.Item) (models.Item, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return submitted, nil
	}
	obj, err := decodeObject(body)
	if err != nil {
		return models.Item{}, err
	}
	it := Normalize(c.kind, obj)
	if it.ReferenceID == "" {
		it.ReferenceID = submitted.ReferenceID
	}
	return it, nil
}

// read runs op once, or under the retry policy when one is configured.
// Only network failures are retried.
func (c *Client) read(ctx context.Context, op func() error) error {
	if c.retry == nil {
		return op()
	}
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var re *Error
		if ctx.Err() != nil || !errors.As(err, &re) || re.Class != ClassNetwork {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(c.retry(), ctx), func(err error, wait time.Duration) {
		c.logger.Debug("retrying read", "kind", c.kind.Slug, "attempt", attempt, "wait", wait, "error", err)
	})
}

// do sends one request and returns the body of a response whose status is
// in expected. collection marks paths where a 404 means the endpoint itself
// is wrong.
func (c *Client) do(ctx context.Context, method, path string, body any, collection bool, expected ...int) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			return nil, session.ErrExpired
		}
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("read response: %w", err))
	}

	for _, status := range expected {
		if resp.StatusCode == status {
			return respBody, nil
		}
	}

	apiErr := ParseError(resp.StatusCode, respBody)
	if collection && resp.StatusCode == http.StatusNotFound {
		apiErr.Msg = fmt.Sprintf("%s: %s %s", ErrEndpointMisconfigured, method, c.baseURL+path)
		apiErr.Err = ErrEndpointMisconfigured
	}
	return nil, apiErr
}
