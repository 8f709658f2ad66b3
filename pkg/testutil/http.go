// Package testutil provides common test utilities for handler tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// NewFormRequest creates an HTTP request carrying form-encoded fields.
func NewFormRequest(t *testing.T, method, path string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// NewRequest creates a simple HTTP request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// WithCookies copies the Set-Cookie headers from a previous response onto the
// request, simulating the browser carrying the session forward.
func WithCookies(req *http.Request, rr *httptest.ResponseRecorder) *http.Request {
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

// AssertStatus asserts the response status code matches expected.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code")
}

// AssertRedirect asserts a 302 response pointing at location.
func AssertRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, rr.Code, "expected a redirect")
	assert.Equal(t, location, rr.Header().Get("Location"), "unexpected redirect target")
}
