package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		timeout time.Duration
		want    time.Duration
	}{
		{timeout: 0, want: 30 * time.Second},
		{timeout: -time.Second, want: 30 * time.Second},
		{timeout: 5 * time.Second, want: 5 * time.Second},
	}

	for _, tt := range tests {
		httpClient, ok := NewHTTPClient(tt.timeout).(*HTTPClient)
		require.True(t, ok)
		assert.Equal(t, tt.want, httpClient.client.Timeout)
	}
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		requestParam *RequestParam
		handler      http.HandlerFunc
		wantErrMsg   string
	}{
		{
			name:         "成功的GET请求",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				_, _ = w.Write([]byte(`{"message": "success"}`))
			},
		},
		{
			name: "POST JSON body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   map[string]interface{}{"key": "value"},
				Header: map[string]string{"Content-Type": "application/json"},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				var data map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&data))
				assert.Equal(t, "value", data["key"])
			},
		},
		{
			name: "io.Reader body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   strings.NewReader("raw reader"),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "raw reader", string(body))
			},
		},
		{
			name: "服务端错误",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("model exploded"))
			},
			wantErrMsg: "HTTP request failed with status 500: model exploded",
		},
		{
			name: "请求超时",
			requestParam: &RequestParam{
				Method:  http.MethodGet,
				Timeout: 50 * time.Millisecond,
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			wantErrMsg: "context deadline exceeded",
		},
		{
			name: "不可序列化的body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   make(chan int),
			},
			handler:    func(w http.ResponseWriter, r *http.Request) {},
			wantErrMsg: "json: unsupported type: chan int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()

			tt.requestParam.RequestURI = server.URL
			err := NewHTTPClient(0).DoHTTPRequest(context.Background(), tt.requestParam)
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPClient_NilParam(t *testing.T) {
	err := NewHTTPClient(0).DoHTTPRequest(context.Background(), nil)
	assert.EqualError(t, err, "request param is nil")
}

func TestHTTPClient_Response(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/raw" {
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
			return
		}
		_, _ = w.Write([]byte(`{"name": "mask.png", "size": 42}`))
	}))
	defer server.Close()

	client := NewHTTPClient(0)

	var raw []byte
	require.NoError(t, client.DoHTTPRequest(context.Background(), &RequestParam{
		RequestURI: server.URL + "/raw",
		Response:   &raw,
	}))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw)

	var decoded struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	require.NoError(t, client.DoHTTPRequest(context.Background(), &RequestParam{
		RequestURI: server.URL + "/json",
		Response:   &decoded,
	}))
	assert.Equal(t, "mask.png", decoded.Name)
	assert.Equal(t, 42, decoded.Size)
}
