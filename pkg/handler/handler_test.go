package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"extblock/internal/testutil"
	"extblock/pkg/handler"
	"extblock/pkg/registry"
)

func newTestServer(t *testing.T, reg handler.Registry) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.New(reg, registry.Korean, log)
	srv := httptest.NewServer(handler.WithRequestID(handler.AccessLog(log, h.Routes())))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func getExtensions(t *testing.T, srv *httptest.Server) handler.ExtensionResponse {
	t.Helper()
	resp := do(t, srv, http.MethodGet, "/api/extensions", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body handler.ExtensionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestListExtensions(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	resp := do(t, srv, http.MethodGet, "/api/extensions", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Contains(t, raw, "fixedExtensions")
	require.Contains(t, raw, "customExtensions")
	require.Equal(t, []any{}, raw["customExtensions"])
	require.EqualValues(t, 0, raw["customCount"])
	require.EqualValues(t, 200, raw["maxCustomCount"])

	body := getExtensions(t, srv)
	require.Len(t, body.FixedExtensions, 7)
	require.Equal(t, "bat", body.FixedExtensions[0].Extension)
	require.False(t, body.FixedExtensions[0].Active)
}

func TestToggleFixedExtension(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	resp := do(t, srv, http.MethodPatch, "/api/extensions/fixed/exe", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := getExtensions(t, srv)
	for _, ext := range body.FixedExtensions {
		require.Equal(t, ext.Extension == "exe", ext.Active, ext.Extension)
	}

	resp = do(t, srv, http.MethodPatch, "/api/extensions/fixed/nope", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "EXTENSION_NOT_FOUND", decodeError(t, resp).Code)
}

func TestCustomExtensionLifecycle(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	resp := do(t, srv, http.MethodPost, "/api/extensions/custom", `{"extension":" .SH "}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := getExtensions(t, srv)
	require.Equal(t, 1, body.CustomCount)
	require.Equal(t, "sh", body.CustomExtensions[0].Extension)

	resp = do(t, srv, http.MethodPost, "/api/extensions/custom", `{"extension":"sh"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := decodeError(t, resp)
	require.Equal(t, "DUPLICATE_EXTENSION", errBody.Code)
	require.Equal(t, "이미 등록된 확장자입니다.", errBody.Message)

	resp = do(t, srv, http.MethodDelete, "/api/extensions/custom/sh", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 0, getExtensions(t, srv).CustomCount)

	resp = do(t, srv, http.MethodDelete, "/api/extensions/custom/sh", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "EXTENSION_NOT_FOUND", decodeError(t, resp).Code)

	resp = do(t, srv, http.MethodDelete, "/api/extensions/custom/exe", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "CANNOT_DELETE_FIXED", decodeError(t, resp).Code)
}

func TestAddCustomValidation(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	tests := []struct {
		name     string
		body     string
		wantCode string
		wantMsg  string
	}{
		{"missing field", `{}`, "VALIDATION_ERROR", "확장자를 입력해주세요."},
		{"blank", `{"extension":"   "}`, "VALIDATION_ERROR", "확장자를 입력해주세요."},
		{"empty", `{"extension":""}`, "VALIDATION_ERROR", "확장자를 입력해주세요."},
		{"too long", `{"extension":"` + strings.Repeat("a", 21) + `"}`, "VALIDATION_ERROR", "확장자는 최대 20자까지 입력 가능합니다."},
		{"wrong type", `{"extension":42}`, "VALIDATION_ERROR", "확장자를 입력해주세요."},
		{"malformed json", `{"extension":`, "VALIDATION_ERROR", "요청 형식이 올바르지 않습니다."},
		{"lone dot", `{"extension":"."}`, "EMPTY_EXTENSION", "확장자를 입력해주세요."},
		{"path traversal", `{"extension":"../etc"}`, "PATH_TRAVERSAL_DETECTED", "경로 문자(/, \\, ..)는 사용할 수 없습니다."},
		{"charset", `{"extension":"tar.gz"}`, "INVALID_EXTENSION", "유효하지 않은 확장자입니다. 영문과 숫자만 사용할 수 있습니다."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, "/api/extensions/custom", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeError(t, resp)
			require.Equal(t, tt.wantCode, body.Code)
			require.Equal(t, tt.wantMsg, body.Message)
		})
	}

	require.Equal(t, 0, getExtensions(t, srv).CustomCount)
}

func TestAcceptLanguage(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	tests := []struct {
		accept string
		want   string
	}{
		{"en", "Fixed extensions cannot be deleted."},
		{"en-US,en;q=0.9", "Fixed extensions cannot be deleted."},
		{"ko-KR", "고정 확장자는 삭제할 수 없습니다."},
		{"fr", "고정 확장자는 삭제할 수 없습니다."},
		{"", "고정 확장자는 삭제할 수 없습니다."},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			header := http.Header{}
			if tt.accept != "" {
				header.Set("Accept-Language", tt.accept)
			}
			resp := do(t, srv, http.MethodDelete, "/api/extensions/custom/exe", "", header)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, tt.want, decodeError(t, resp).Message)
		})
	}
}

// failingRegistry fails every call with a storage error.
type failingRegistry struct{ err error }

func (f failingRegistry) List(context.Context) (registry.Listing, error) {
	return registry.Listing{}, f.err
}

func (f failingRegistry) ToggleFixed(context.Context, string) (registry.Record, error) {
	return registry.Record{}, f.err
}

func (f failingRegistry) AddCustom(context.Context, string) (registry.Record, error) {
	return registry.Record{}, f.err
}

func (f failingRegistry) DeleteCustom(context.Context, string) error {
	return f.err
}

func TestInternalError(t *testing.T) {
	srv := newTestServer(t, failingRegistry{err: errors.New("database is locked")})

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/extensions", ""},
		{http.MethodPatch, "/api/extensions/fixed/exe", ""},
		{http.MethodPost, "/api/extensions/custom", `{"extension":"sh"}`},
		{http.MethodDelete, "/api/extensions/custom/sh", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body, nil)
			require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			body := decodeError(t, resp)
			require.Equal(t, "INTERNAL_ERROR", body.Code)
			require.NotContains(t, body.Message, "database is locked")
		})
	}
}

func TestRoutingAndHealth(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	resp := do(t, srv, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "ok", health["status"])

	resp = do(t, srv, http.MethodPut, "/api/extensions", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/extensions", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, testutil.NewRegistry(t, registry.Options{}))

	resp := do(t, srv, http.MethodGet, "/api/health", "", nil)
	require.NotEmpty(t, resp.Header.Get(handler.RequestIDHeader))

	header := http.Header{}
	header.Set(handler.RequestIDHeader, "req-123")
	resp = do(t, srv, http.MethodGet, "/api/health", "", header)
	require.Equal(t, "req-123", resp.Header.Get(handler.RequestIDHeader))

	header.Set(handler.RequestIDHeader, strings.Repeat("x", 65))
	resp = do(t, srv, http.MethodGet, "/api/health", "", header)
	require.Len(t, resp.Header.Get(handler.RequestIDHeader), 36)
}
