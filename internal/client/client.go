// Package client calls the auth and document services over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/middleware/requestid"
)

// InternalTokenHeader carries the shared service-to-service secret.
const InternalTokenHeader = "X-Internal-Token"

// Observer receives one measurement per upstream call.
type Observer interface {
	ObserveUpstream(upstream string, err error, duration time.Duration)
}

// Config describes one upstream service.
type Config struct {
	BaseURL       string
	APIPrefix     string
	Timeout       time.Duration
	InternalToken string
	HTTPClient    *http.Client
	Observer      Observer
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

type base struct {
	name     string
	prefix   string
	token    string
	http     *http.Client
	observer Observer
}

func newBase(name string, cfg Config) base {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	apiPrefix := cfg.APIPrefix
	if apiPrefix == "" {
		apiPrefix = "/api/v1"
	}
	return base{
		name:     name,
		prefix:   strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(apiPrefix, "/"),
		token:    cfg.InternalToken,
		http:     httpClient,
		observer: cfg.Observer,
	}
}

type call struct {
	method   string
	path     string
	bearer   string
	internal bool
	body     interface{}
}

// do performs the call and decodes the envelope data into out. Upstream 4xx
// errors are returned as the upstream reported them; anything else is an
// UpstreamError.
func (b base) do(ctx context.Context, c call, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if b.observer != nil {
			b.observer.ObserveUpstream(b.name, err, time.Since(start))
		}
	}()

	var body io.Reader
	if c.body != nil {
		payload, marshalErr := json.Marshal(c.body)
		if marshalErr != nil {
			return appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode upstream request")
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, b.prefix+c.path, body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, b.name+" request could not be built")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.internal {
		req.Header.Set(InternalTokenHeader, b.token)
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, b.name+" unavailable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, b.name+" response unreadable")
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode < 500 && decodeErr == nil && env.Error != nil && env.Error.Code != "" {
			env.Error.Status = resp.StatusCode
			return env.Error
		}
		return appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("%s responded with status %d", b.name, resp.StatusCode))
	}
	if decodeErr != nil {
		return appErrors.Wrap(decodeErr, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, b.name+" returned malformed body")
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, b.name+" returned unexpected data")
	}
	return nil
}
