package httpkit_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/pkg/httpkit"
)

type testError struct {
	err  error
	code int
}

func (e testError) Error() string { return e.err.Error() }
func (e testError) HTTPCode() int { return e.code }
func (e testError) Cause() error  { return e.err }

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		AssetID string `json:"asset_id"`
	}

	t.Run("it decodes a valid body", func(t *testing.T) {
		t.Parallel()

		// Arrange
		req := httptest.NewRequest(http.MethodPost, "/stakes", strings.NewReader(`{"asset_id":"bee-1"}`))

		// Act
		var got body
		err := httpkit.DecodeJSON(req, &got)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "bee-1", got.AssetID)
	})

	t.Run("it rejects an empty body", func(t *testing.T) {
		t.Parallel()

		// Arrange
		req := httptest.NewRequest(http.MethodPost, "/stakes", strings.NewReader(""))

		// Act
		var got body
		err := httpkit.DecodeJSON(req, &got)

		// Assert
		assert.ErrorIs(t, err, httpkit.ErrEmptyBody)
	})

	t.Run("it rejects unknown fields", func(t *testing.T) {
		t.Parallel()

		// Arrange
		req := httptest.NewRequest(http.MethodPost, "/stakes", strings.NewReader(`{"asset":"bee-1"}`))

		// Act
		var got body
		err := httpkit.DecodeJSON(req, &got)

		// Assert
		assert.ErrorIs(t, err, httpkit.ErrMalformedBody)
	})
}

func TestResponseHandlers(t *testing.T) {
	t.Parallel()

	t.Run("it writes accepted responses as JSON", func(t *testing.T) {
		t.Parallel()

		// Arrange
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/claims", nil)

		// Act
		httpkit.Accepted(map[string]string{"request_id": "abc"})(rec, req)

		// Assert
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

		var got map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "abc", got["request_id"])
	})

	t.Run("it records the error in the request context", func(t *testing.T) {
		t.Parallel()

		// Arrange
		apiErr := testError{err: errors.New("nope"), code: http.StatusConflict}
		var tracked error
		h := httpkit.HandlerFunc(func(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				httpkit.JsonError(apiErr)(w, r)
				tracked = httpkit.Error(r.Context())
			}
		})
		rec := httptest.NewRecorder()

		// Act
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		// Assert
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apiErr, tracked)
	})
}
