package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// httpClient allows http.Client to be mocked for tests
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Generic REST restClient
type restClient struct {
	client  httpClient
	baseURL *url.URL
	token   string
}

// Error is returned for responses with an unexpected status code.  Message holds the response
// text, or the error of a JSON error document; Field names the rejected request field, if any.
type Error struct {
	Method     string
	URI        string
	StatusCode int
	Message    string
	Field      string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s for %q, unexpected %v", e.Method, e.URI, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// do performs an HTTP request with this client and returns the response.
func (c *restClient) do(
	ctx context.Context,
	method, uri string,
	query url.Values,
	body []byte,
) (*http.Response, error) {
	u := c.baseURL.JoinPath(uri)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("%s for %q: %v", method, u, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.client.Do(req)
}

// doJSON performs an HTTP request with this client, sending in as the JSON request body when
// non-nil, and marshalls the JSON response into out.
func (c *restClient) doJSON(
	ctx context.Context,
	method, uri string,
	query url.Values,
	in, out any,
) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	resp, err := c.do(ctx, method, uri, query, body)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusOK {
		if out == nil {
			return nil
		}
		// Decode response body
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return responseError(method, uri, resp)
}

// doBytes performs an HTTP request with this client and returns the response body.
func (c *restClient) doBytes(
	ctx context.Context,
	method, uri string,
	query url.Values,
	body []byte,
) ([]byte, error) {
	resp, err := c.do(ctx, method, uri, query, body)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(method, uri, resp)
	}
	return io.ReadAll(resp.Body)
}

// responseError builds an Error from a failed response.  JSON error documents are decoded.
func responseError(method, uri string, resp *http.Response) error {
	e := &Error{Method: method, URI: uri, StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	doc := struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}{}
	if json.Unmarshal(body, &doc) == nil && doc.Error != "" {
		e.Message, e.Field = doc.Error, doc.Field
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
