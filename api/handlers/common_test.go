package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/types"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		data       any
		wantStatus int
	}{
		{
			name:       "simple object",
			data:       map[string]string{"message": "hello"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "array",
			data:       []int{1, 2, 3},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.wantStatus, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	err := types.NewError(types.ErrFormFailure, "cargo weight field could not be filled")

	WriteError(w, err, zap.NewNop())

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrFormFailure), resp.Error.Code)
	assert.Equal(t, "cargo weight field could not be filled", resp.Error.Message)
}

func TestWriteErrorHonorsExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	err := types.NewError(types.ErrForbidden, "live submission is disabled").WithHTTPStatus(403)

	WriteError(w, err, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWriteFailureWrapsPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()

	WriteFailure(w, assert.AnError, zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInternalError), resp.Error.Code)
	// 内部错误细节不外泄
	assert.NotContains(t, resp.Error.Message, assert.AnError.Error())
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrUnauthorized, http.StatusUnauthorized},
		{types.ErrAuthFailure, http.StatusUnauthorized},
		{types.ErrCaptchaFailure, http.StatusUnauthorized},
		{types.ErrForbidden, http.StatusForbidden},
		{types.ErrModuleAccess, http.StatusForbidden},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrCancelled, http.StatusRequestTimeout},
		{types.ErrLocationFailure, http.StatusUnprocessableEntity},
		{types.ErrFormFailure, http.StatusUnprocessableEntity},
		{types.ErrSubmitUnconfirm, http.StatusUnprocessableEntity},
		{types.ErrNetworkTransient, http.StatusServiceUnavailable},
		{types.ErrInternalError, http.StatusInternalServerError},
		{types.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"test"}`))

		var dst payload
		require.NoError(t, DecodeJSONBody(w, r, &dst, zap.NewNop()))
		assert.Equal(t, "test", dst.Name)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{name}`))

		var dst payload
		require.Error(t, DecodeJSONBody(w, r, &dst, zap.NewNop()))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))

		var dst payload
		require.Error(t, DecodeJSONBody(w, r, &dst, zap.NewNop()))
	})
}

func TestDecodeJSONBody_MaxBodySize(t *testing.T) {
	// 超过 1 MB 的请求体在解码阶段被截断并报错
	huge := bytes.Repeat([]byte("a"), maxBodyBytes+1024)
	body := `{"name":"` + string(huge) + `"}`

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst struct {
		Name string `json:"name"`
	}
	require.Error(t, DecodeJSONBody(w, r, &dst, zap.NewNop()))
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"json", "application/json", true},
		{"json with charset", "application/json; charset=utf-8", true},
		{"form", "application/x-www-form-urlencoded", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			assert.Equal(t, tt.want, ValidateContentType(w, r, zap.NewNop()))
		})
	}
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // 第二次写入被忽略

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, w.Code)

	n, err := rw.Write([]byte("body"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
