package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURLStr = "http://test.local:8080"
const baseURLPathStr = "http://test.local:8080/archive"

var baseURL *url.URL

var baseURLPath *url.URL

func init() {
	var err error
	baseURL, err = url.Parse(baseURLStr)
	if err != nil {
		panic(err)
	}
	baseURLPath, err = url.Parse(baseURLPathStr)
	if err != nil {
		panic(err)
	}
}

type mockHTTPClient struct {
	req        *http.Request
	statusCode int
	body       string
}

func (m *mockHTTPClient) Do(req *http.Request) (resp *http.Response, err error) {
	m.req = req
	if m.statusCode == 0 {
		m.statusCode = 200
	}
	resp = &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}
	return
}

func (m *mockHTTPClient) ReqBody() []byte {
	if m.req.GetBody == nil {
		return nil
	}
	r, err := m.req.GetBody()
	if err != nil {
		return nil
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	_ = r.Close()
	return body
}

func TestDoTable(t *testing.T) {
	tests := []struct {
		method   string
		uri      string
		query    url.Values
		base     *url.URL
		wantURL  string
		wantBody []byte
	}{
		{method: "GET", uri: "/doget", base: baseURL, wantURL: baseURLStr + "/doget"},
		{method: "POST", uri: "/dopost", base: baseURL, wantURL: baseURLStr + "/dopost", wantBody: []byte("Test body 2")},
		{method: "GET", uri: "/doget", base: baseURLPath, wantURL: baseURLPathStr + "/doget"},
		{method: "POST", uri: "/dopost", base: baseURLPath, wantURL: baseURLPathStr + "/dopost", wantBody: []byte("Test body 4")},
		{method: "GET", uri: "/doget", query: url.Values{"id": {"<a@b>"}}, base: baseURL, wantURL: baseURLStr + "/doget?id=%3Ca%40b%3E"},
	}
	for _, test := range tests {
		testname := fmt.Sprintf("%s,%s", test.method, test.wantURL)
		t.Run(testname, func(t *testing.T) {
			ctx := context.Background()
			mth := &mockHTTPClient{}
			c := &restClient{client: mth, baseURL: test.base}

			resp, err := c.do(ctx, test.method, test.uri, test.query, test.wantBody)
			require.NoError(t, err)
			err = resp.Body.Close()
			require.NoError(t, err)

			assert.Equal(t, test.method, mth.req.Method)
			assert.Equal(t, test.wantURL, mth.req.URL.String())
			assert.Equal(t, test.wantBody, mth.ReqBody())
			assert.Empty(t, mth.req.Header.Get("Authorization"))
		})
	}
}

func TestDoSendsToken(t *testing.T) {
	mth := &mockHTTPClient{}
	c := &restClient{client: mth, baseURL: baseURL, token: "abc"}

	resp, err := c.do(context.Background(), "GET", "/doget", nil, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer abc", mth.req.Header.Get("Authorization"))
}

func TestDoJSON(t *testing.T) {
	mth := &mockHTTPClient{
		body: `{"foo": "bar"}`,
	}
	c := &restClient{client: mth, baseURL: baseURL}

	var v map[string]any
	err := c.doJSON(context.Background(), "POST", "/dopost", nil, map[string]int{"n": 1}, &v)
	require.NoError(t, err)

	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, baseURLStr+"/dopost", mth.req.URL.String())
	assert.Equal(t, "application/json", mth.req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"n": 1}`, string(mth.ReqBody()))
	assert.Equal(t, "bar", v["foo"])
}

func TestDoJSONNilV(t *testing.T) {
	mth := &mockHTTPClient{}
	c := &restClient{client: mth, baseURL: baseURL}

	err := c.doJSON(context.Background(), "GET", "/doget", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "GET", mth.req.Method)
	assert.Equal(t, baseURLStr+"/doget", mth.req.URL.String())
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		wantField string
	}{
		{"text", http.StatusForbidden, "Go away\n", "Go away", ""},
		{"json", http.StatusBadRequest, `{"error": "Bad list", "field": "list"}`, "Bad list", "list"},
		{"empty", http.StatusInternalServerError, "", "", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mth := &mockHTTPClient{statusCode: test.status, body: test.body}
			c := &restClient{client: mth, baseURL: baseURL}

			_, err := c.doBytes(context.Background(), "GET", "/doget", nil, nil)
			var rerr *Error
			require.True(t, errors.As(err, &rerr), "got %v", err)
			assert.Equal(t, test.status, rerr.StatusCode)
			assert.Equal(t, test.wantMsg, rerr.Message)
			assert.Equal(t, test.wantField, rerr.Field)
		})
	}
}
