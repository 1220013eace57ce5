/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/network"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/restapi/operation"
)

const (
	defaultMaxRetries = 3

	contentTypeBinary = "application/octet-stream"
)

var logger = log.New("prenet/client")

var errNoURL = errors.New("node has no URL")

type addHeaders func(req *http.Request) (*http.Header, error)

// Client talks to nodes over their REST surface. Transport failures are retried with backoff;
// any answer from the node, including a refusal, is final.
type Client struct {
	httpClient    *http.Client
	headersFunc   addHeaders
	maxRetries    uint64
	retryInterval time.Duration
}

// Option configures the node client.
type Option func(opts *Client)

// WithTLSConfig option is for definition of secured HTTP transport using a tls.Config instance
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opts *Client) {
		opts.httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(opts *Client) {
		opts.httpClient.Transport = transport
	}
}

// WithHeaders option is for setting additional http request headers
func WithHeaders(addHeadersFunc addHeaders) Option {
	return func(opts *Client) {
		opts.headersFunc = addHeadersFunc
	}
}

// WithTimeout bounds every single HTTP exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Client) {
		opts.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets how many times a request is retried after a transport failure.
func WithMaxRetries(maxRetries uint64) Option {
	return func(opts *Client) {
		opts.maxRetries = maxRetries
	}
}

// WithRetryInterval makes retries wait a constant interval instead of backing off exponentially.
func WithRetryInterval(interval time.Duration) Option {
	return func(opts *Client) {
		opts.retryInterval = interval
	}
}

// New returns a new node client.
func New(opts ...Option) *Client {
	c := &Client{httpClient: &http.Client{}, maxRetries: defaultMaxRetries}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ConsiderArrangement implements network.Client.
func (c *Client) ConsiderArrangement(ctx context.Context, info *network.NodeInfo, arrangement []byte) ([]byte, error) {
	return c.post(ctx, info, operation.ConsiderArrangementEndpoint, arrangement)
}

// Reencrypt implements network.Client.
func (c *Client) Reencrypt(ctx context.Context, info *network.NodeInfo, request []byte) ([]byte, error) {
	return c.post(ctx, info, operation.ReencryptEndpoint, request)
}

// RevokeArrangement implements network.Client.
func (c *Client) RevokeArrangement(ctx context.Context, info *network.NodeInfo, revocation []byte) error {
	_, err := c.post(ctx, info, operation.RevokeEndpoint, revocation)

	return err
}

// PublicInformation learns a node's identity from its URL. The advertised address must belong to the
// advertised verifying key.
func (c *Client) PublicInformation(ctx context.Context, nodeURL string) (*network.NodeInfo, error) {
	respBytes, err := c.send(ctx, http.MethodGet, endpoint(nodeURL, operation.PublicInformationEndpoint), nil)
	if err != nil {
		return nil, err
	}

	var info network.NodeInfo

	if err := json.Unmarshal(respBytes, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal public information of %s: %w", nodeURL, err)
	}

	if expected := crypto.ChecksumAddress(info.VerifyingKey); info.ChecksumAddress != expected {
		return nil, fmt.Errorf("node at %s advertises address %s but its verifying key belongs to %s",
			nodeURL, info.ChecksumAddress, expected)
	}

	if info.URL == "" {
		info.URL = nodeURL
	}

	return &info, nil
}

// Status fetches a node's counters.
func (c *Client) Status(ctx context.Context, nodeURL string) (*node.NodeStatus, error) {
	respBytes, err := c.send(ctx, http.MethodGet, endpoint(nodeURL, operation.StatusEndpoint), nil)
	if err != nil {
		return nil, err
	}

	var status node.NodeStatus

	if err := json.Unmarshal(respBytes, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status of %s: %w", nodeURL, err)
	}

	return &status, nil
}

func (c *Client) post(ctx context.Context, info *network.NodeInfo, path string, body []byte) ([]byte, error) {
	if info.URL == "" {
		return nil, fmt.Errorf("%w: %s: %s", network.ErrNodeSeemsToBeDown, info.ChecksumAddress, errNoURL)
	}

	return c.send(ctx, http.MethodPost, endpoint(info.URL, path), body)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var (
		statusCode int
		respBytes  []byte
	)

	attempt := 0

	err := backoff.Retry(func() error {
		attempt++

		var err error

		statusCode, respBytes, err = c.sendHTTPRequest(ctx, method, url, body)
		if err != nil && ctx.Err() == nil {
			logger.Debugf("Attempt %d of %s request to %s failed: %s", attempt, method, url, err)
		}

		return err
	}, backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", network.ErrNodeSeemsToBeDown, method, url, err)
	}

	if statusCode != http.StatusOK {
		return nil, &network.UnexpectedResponseError{StatusCode: statusCode, Message: string(respBytes)}
	}

	return respBytes, nil
}

func (c *Client) sendHTTPRequest(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	req, errReq := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if errReq != nil {
		return -1, nil, backoff.Permanent(errReq)
	}

	if c.headersFunc != nil {
		httpHeaders, err := c.headersFunc(req)
		if err != nil {
			return -1, nil, backoff.Permanent(fmt.Errorf("add optional request headers error: %w", err))
		}

		if httpHeaders != nil {
			req.Header = httpHeaders.Clone()
		}
	}

	if method == http.MethodPost {
		req.Header.Set("Content-Type", contentTypeBinary)
	}

	resp, err := c.httpClient.Do(req) //nolint: bodyclose
	if err != nil {
		return -1, nil, err
	}

	defer closeReadCloser(resp.Body)

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, nil, err
	}

	logger.Debugf(`sent %s request to %s response status code: %d response length: %d`, method, url,
		resp.StatusCode, len(respBytes))

	return resp.StatusCode, respBytes, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	if c.retryInterval > 0 {
		return backoff.NewConstantBackOff(c.retryInterval)
	}

	return backoff.NewExponentialBackOff()
}

func endpoint(nodeURL, path string) string {
	return strings.TrimSuffix(nodeURL, "/") + path
}

func closeReadCloser(respBody io.ReadCloser) {
	err := respBody.Close()
	if err != nil {
		logger.Errorf("Failed to close response body: %s", err)
	}
}
