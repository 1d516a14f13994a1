// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is an HTTP client for agents served by agentd.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/agentd/a2a"
	"github.com/go-a2a/agentd/internal/jsonrpc2"
)

// Client calls the JSON-RPC methods of one agent.
type Client struct {
	httpClient   *http.Client
	url          string
	token        string
	userAgent    string
	interceptors []Interceptor
	logger       *slog.Logger

	nextID atomic.Int64
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the [*http.Client] used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBearerToken sends token in the Authorization header of every request.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithInterceptors appends request interceptors. They run in the given order.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithLogger sets the [*slog.Logger] for the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the agent whose JSON-RPC endpoint is url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		url:        strings.TrimRight(url, "/") + "/",
		userAgent:  "agentd-client",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromCard creates a client for the agent described by card.
func NewFromCard(card *a2a.AgentCard, opts ...Option) *Client {
	return New(card.URL, opts...)
}

// SendMessage sends a message and returns the accepted task. The task is
// normally still working; poll it with [Client.GetTask].
func (c *Client) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, a2a.MethodMessageSend, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask returns the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, a2a.MethodTasksGet, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask cancels a task and returns it in its canceled state.
func (c *Client) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	var t a2a.Task
	if err := c.call(ctx, a2a.MethodTasksCancel, params, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// StreamMessage sends a message and returns the stream of its task events.
// A request rejected before streaming starts is returned as an error.
func (c *Client) StreamMessage(ctx context.Context, params *a2a.MessageSendParams) (*Stream, error) {
	id, body, err := c.encode(a2a.MethodMessageStream, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		defer resp.Body.Close()
		if err := c.decodeResponse(resp.Body, nil); err != nil {
			return nil, err
		}
		return nil, errors.New("agent answered without a stream")
	}
	return newStream(resp.Body, id), nil
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	_, body, err := c.encode(method, params)
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.decodeResponse(resp.Body, result); err != nil {
		c.logger.DebugContext(ctx, "call failed", "method", method, "error", err)
		return err
	}
	return nil
}

func (c *Client) encode(method string, params any) (jsontext.Value, []byte, error) {
	id := jsontext.Value(fmt.Sprintf("%d", c.nextID.Add(1)))
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s params: %w", method, err)
	}
	body, err := json.Marshal(&jsonrpc2.Request{
		JSONRPC: jsonrpc2.Version,
		ID:      id,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	return id, body, nil
}

func (c *Client) post(ctx context.Context, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	invoker := func(_ context.Context, req *http.Request) (*http.Response, error) {
		return c.httpClient.Do(req)
	}
	resp, err := chainInterceptors(c.interceptors, invoker)(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// decodeResponse decodes a JSON-RPC response into result, returning the
// response error as a [*jsonrpc2.WireError].
func (c *Client) decodeResponse(r io.Reader, result any) error {
	var resp struct {
		Result jsontext.Value      `json:"result"`
		Error  *jsonrpc2.WireError `json:"error"`
	}
	if err := json.UnmarshalRead(r, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
