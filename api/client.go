// Package api implements the client-side API for the subword tokenization
// server. The server itself lives in package server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/jmorganca/subword/envconfig"
	"github.com/jmorganca/subword/version"
)

// Client encapsulates client state for interacting with the subword
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable SUBWORD_HOST, which points to the network host and
// port on which the server listens.
func ClientFromEnvironment() (*Client, error) {
	base, err := envconfig.Host()
	if err != nil {
		return nil, err
	}

	return NewClient(base, http.DefaultClient), nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("subword/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if err := checkError(response, body); err != nil {
		return err
	}

	if respData != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respData); err != nil {
			return err
		}
	}

	return nil
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	if err := json.Unmarshal(body, &apiError); err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// Tokenize splits text into tokens and ids with the server's tokenizer.
func (c *Client) Tokenize(ctx context.Context, req *TokenizeRequest) (*TokenizeResponse, error) {
	var resp TokenizeResponse
	if err := c.do(ctx, http.MethodPost, "/api/tokenize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detokenize converts ids back into text.
func (c *Client) Detokenize(ctx context.Context, req *DetokenizeRequest) (*DetokenizeResponse, error) {
	var resp DetokenizeResponse
	if err := c.do(ctx, http.MethodPost, "/api/detokenize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Show describes the loaded tokenizer.
func (c *Client) Show(ctx context.Context) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.do(ctx, http.MethodGet, "/api/show", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Heartbeat checks if the server has started and is responsive; if yes, it
// returns nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

// Version returns the subword server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}

	return version.Version, nil
}
