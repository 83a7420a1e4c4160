package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func fileFromPath(fieldName, path string) File {
	return File{
		FieldName: fieldName,
		FileName:  filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		BaseURL:   server.URL,
		UserAgent: "enach-test/1.0",
		Tokens:    tokens,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid", baseURL: "http://localhost:8000"},
		{name: "trailing slash", baseURL: "https://enach.example.com/"},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "no scheme", baseURL: "localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(&Config{BaseURL: tt.baseURL})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, int(client.http.Timeout))
		})
	}
}

func TestClient_Do_AuthHeader(t *testing.T) {
	tests := []struct {
		name     string
		tokens   TokenSource
		auth     bool
		header   http.Header
		expected string
	}{
		{name: "attaches bearer token", tokens: staticToken("abc"), auth: true, expected: "Bearer abc"},
		{name: "no token available", tokens: staticToken(""), auth: true, expected: ""},
		{name: "unauthenticated call", tokens: staticToken("abc"), auth: false, expected: ""},
		{
			name:     "explicit header wins",
			tokens:   staticToken("abc"),
			auth:     true,
			header:   http.Header{"Authorization": []string{"Bearer explicit"}},
			expected: "Bearer explicit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				_, _ = w.Write([]byte(`{}`))
			}, tt.tokens)

			_, err := client.Do(context.Background(), Request{
				Method: http.MethodGet,
				Path:   "/health",
				Auth:   tt.auth,
				Header: tt.header,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClient_Do_RequestShape(t *testing.T) {
	var captured *http.Request
	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, nil)

	resp, err := client.Do(context.Background(), Request{
		Method:     http.MethodPost,
		Path:       "/api/v1/jobs/{jobId}/validate",
		PathParams: map[string]string{"jobId": "job 1"},
		Query:      map[string]string{"limit": "20", "status": ""},
		JSON:       map[string]any{"approve": true},
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/jobs/job 1/validate", captured.URL.Path)
	assert.Equal(t, "/api/v1/jobs/job%201/validate", captured.URL.EscapedPath())
	assert.Equal(t, "limit=20", captured.URL.RawQuery)
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", captured.Header.Get("Accept"))
	assert.Equal(t, "enach-test/1.0", captured.Header.Get("User-Agent"))
	assert.NotEmpty(t, captured.Header.Get(RequestIDHeader))
	assert.Equal(t, captured.Header.Get(RequestIDHeader), resp.RequestID)
	assert.JSONEq(t, `{"approve":true}`, body)

	var decoded struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, resp.Decode(&decoded))
	assert.True(t, decoded.OK)
}

func TestClient_Do_MissingPathParam(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}, nil)

	_, err := client.Do(context.Background(), Request{Path: "/api/v1/jobs/{jobId}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path parameter")
}

func TestClient_Do_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "nested error message", status: 400, body: `{"error":{"code":"BAD","message":"cheque image unreadable"}}`, wantMessage: "cheque image unreadable"},
		{name: "detail string", status: 401, body: `{"detail":"Invalid credentials"}`, wantMessage: "Invalid credentials"},
		{name: "detail list", status: 422, body: `{"detail":[{"loc":["body"],"msg":"field required"}]}`, wantMessage: "field required"},
		{name: "message", status: 404, body: `{"message":"Job not found"}`, wantMessage: "Job not found"},
		{name: "error string", status: 500, body: `{"error":"boom"}`, wantMessage: "boom"},
		{name: "plain text", status: 503, body: "upstream unavailable", wantMessage: "upstream unavailable"},
		{name: "html body", status: 502, body: "<html>bad gateway</html>", wantMessage: ""},
		{name: "empty body", status: 500, body: "", wantMessage: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)

			_, err := client.Do(context.Background(), Request{Path: "/api/v1/jobs"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.True(t, IsAPIError(err))
			assert.False(t, IsNetworkError(err))
		})
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClient(&Config{BaseURL: baseURL})
	require.NoError(t, err)

	_, err = client.Do(context.Background(), Request{Path: "/health"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestClient_Do_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Do(ctx, Request{Path: "/health"})
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponse_Decode(t *testing.T) {
	var v map[string]any

	err := (&Response{Body: []byte("  ")}).Decode(&v)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, IsParseError(err))

	err = (&Response{Body: []byte("{not json")}).Decode(&v)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestClient_Stream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing/form") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Form not generated"}`))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 payload"))
	}, nil)

	body, _, err := client.Stream(context.Background(), Request{
		Path:       "/api/v1/jobs/{jobId}/form",
		PathParams: map[string]string{"jobId": "job-1"},
	})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "%PDF-1.4 payload", string(data))

	_, _, err = client.Stream(context.Background(), Request{
		Path:       "/api/v1/jobs/{jobId}/form",
		PathParams: map[string]string{"jobId": "missing"},
	})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Form not generated", apiErr.Message)
}

func TestClient_Do_Multipart(t *testing.T) {
	dir := t.TempDir()
	cheque := filepath.Join(dir, "cheque.jpg")
	require.NoError(t, os.WriteFile(cheque, []byte("jpeg-bytes"), 0o600))

	var (
		files  = map[string]string{}
		types  = map[string]string{}
		fields = map[string][]string{}
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		for name, headers := range r.MultipartForm.File {
			f, err := headers[0].Open()
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(f)
			f.Close()
			files[name] = string(data)
			types[name] = headers[0].Header.Get("Content-Type")
		}
		fields = r.MultipartForm.Value
		_, _ = w.Write([]byte(`{}`))
	}, nil)

	_, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/v1/jobs",
		Multipart: &Multipart{
			Files: []File{fileFromPath("cheque_image", cheque)},
			Fields: []Field{
				{Name: "customer_identifier", Value: "CUST-1"},
				{Name: "customer_name", Value: ""},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "jpeg-bytes", files["cheque_image"])
	assert.Equal(t, "image/jpeg", types["cheque_image"])
	assert.NotContains(t, files, "enach_form")
	assert.Equal(t, []string{"CUST-1"}, fields["customer_identifier"])
	assert.NotContains(t, fields, "customer_name")
}

func TestClient_Do_MultipartMissingFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}, nil)

	_, err := client.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/v1/jobs",
		Multipart: &Multipart{
			Files: []File{fileFromPath("cheque_image", filepath.Join(t.TempDir(), "absent.jpg"))},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileUnavailable)
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		file     File
		expected string
	}{
		{file: File{FileName: "form.PDF"}, expected: "application/pdf"},
		{file: File{FileName: "cheque.jpeg"}, expected: "image/jpeg"},
		{file: File{FileName: "cheque.png"}, expected: "image/png"},
		{file: File{FileName: "blob"}, expected: "application/octet-stream"},
		{file: File{FileName: "x.pdf", ContentType: "image/heic"}, expected: "image/heic"},
	}

	for _, tt := range tests {
		t.Run(tt.file.FileName, func(t *testing.T) {
			assert.Equal(t, tt.expected, contentTypeFor(tt.file))
		})
	}
}
