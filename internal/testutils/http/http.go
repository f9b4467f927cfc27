// Package http helps tests of echo servers.
package http

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

// RequestOption modifies a request before it is served.
type RequestOption func(req *http.Request)

func ContentType(ctyp string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(echo.HeaderContentType, ctyp)
	}
}

func WithBasicAuth(user string, password string) RequestOption {
	return func(req *http.Request) {
		req.SetBasicAuth(user, password)
	}
}

// Serve passes a request through routes and middlewares of e.
func Serve(e *echo.Echo, method string, target string, body io.Reader, options ...RequestOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for _, opt := range options {
		opt(req)
	}
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	return resp
}
