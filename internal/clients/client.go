// Package clients holds the HTTP adapters for the external delivery-fee and
// upsell suggestion services.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/pkg/errors"
)

// ErrUnavailable is returned while the circuit to a failing service is open.
var ErrUnavailable = errors.New("service temporarily unavailable")

// StatusError is a non-2xx answer from a service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// jsonClient posts JSON documents to one base URL. After repeated failures
// it stops calling the service for a while and fails fast instead.
type jsonClient struct {
	baseURL string
	http    *http.Client
	breaker *breaker.Breaker
}

func newJSONClient(baseURL string, httpClient *http.Client) *jsonClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &jsonClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		breaker: breaker.New(5, 1, 30*time.Second),
	}
}

func (c *jsonClient) post(ctx context.Context, path string, in, out interface{}) error {
	err := c.breaker.Run(func() error {
		return c.do(ctx, path, in, out)
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return ErrUnavailable
	}
	return err
}

func (c *jsonClient) do(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
