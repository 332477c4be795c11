package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/handler"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var got handler.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("simple data", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		err := handler.JSON(map[string]string{"id": "123"}).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, handler.JSONResponse{Data: map[string]any{"id": "123"}}, decode(t, w))
	})

	t.Run("status meta and header", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		err := handler.JSON("queued",
			handler.WithJSONStatus(http.StatusAccepted),
			handler.WithJSONMeta(map[string]any{"version": "2025-03"}),
			handler.WithJSONHeader("Retry-After", "60"),
		).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
		assert.Equal(t, handler.JSONResponse{Data: "queued", Meta: map[string]any{"version": "2025-03"}}, decode(t, w))
	})

	t.Run("full envelope is sent as is", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		body := handler.JSONResponse{Data: "denied", Error: &handler.ErrorDetail{Code: "limit_reached"}}
		err := handler.JSON(body, handler.WithJSONStatus(http.StatusTooManyRequests)).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, body, decode(t, w))
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		err := handler.JSONError(handler.NewHTTPError(http.StatusNotFound, "tenant_not_found", "tenant not found")).Render(w, r)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, &handler.ErrorDetail{Code: "tenant_not_found", Message: "tenant not found"}, decode(t, w).Error)
	})

	t.Run("wrapped http error", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		wrapped := errors.Join(errors.New("lookup"), handler.NewHTTPError(http.StatusConflict, "conflict", ""))
		require.NoError(t, handler.JSONError(wrapped).Render(w, r))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, &handler.ErrorDetail{Code: "conflict", Message: "Conflict"}, decode(t, w).Error)
	})

	t.Run("plain error hides message", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		require.NoError(t, handler.JSONError(errors.New("dial tcp 10.0.0.1:5432")).Render(w, r))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		got := decode(t, w)
		require.NotNil(t, got.Error)
		assert.Equal(t, "internal_error", got.Error.Code)
		assert.NotContains(t, got.Error.Message, "10.0.0.1")
	})

	t.Run("with meta", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		resp := handler.JSONError(
			handler.NewHTTPError(http.StatusServiceUnavailable, "store_unavailable", ""),
			handler.WithJSONMeta(map[string]any{"pending": []string{"monthly"}}),
		)
		require.NoError(t, resp.Render(w, r))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, []any{"monthly"}, decode(t, w).Meta["pending"])
	})
}
