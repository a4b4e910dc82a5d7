package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/pkg/httpkit"
	"github.com/screwyprof/hivestake/pkg/logger"
)

// apiError mimics web/api.Error: a public message on the wire, a detailed cause for logs
type apiError struct {
	cause  error
	public string
	code   int
}

func (e apiError) Error() string { return e.public }
func (e apiError) HTTPCode() int { return e.code }
func (e apiError) Cause() error  { return e.cause }

func (e apiError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"code": e.code, "message": e.public})
}

// requestLog is one HTTP access record
type requestLog struct {
	Level    string  `json:"level"`
	Msg      string  `json:"msg"`
	Method   string  `json:"method"`
	URI      string  `json:"uri"`
	Route    string  `json:"route,omitempty"`
	Status   int     `json:"status"`
	Duration float64 `json:"duration"`
	BytesIn  int     `json:"bytes_in"`
	BytesOut int     `json:"bytes_out"`
	Account  string  `json:"account,omitempty"`
	Error    string  `json:"error,omitempty"`
	Service  string  `json:"service,omitempty"`
}

// ledgerAPI is a cut-down route table shaped like the ledger's HTTP surface
func ledgerAPI() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /stakes", httpkit.HandlerFunc(func(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
		if r.Header.Get(httpkit.AccountHeader) == "" {
			return httpkit.JsonError(apiError{
				cause:  errors.New("missing X-Account-ID header"),
				public: "missing X-Account-ID header",
				code:   http.StatusBadRequest,
			})
		}
		return httpkit.Accepted(map[string]string{"request_id": "5b0e7a4c-1d2f-4e7e-9a51-0c9a4f8d2b11"})
	}))
	mux.Handle("POST /claims", httpkit.HandlerFunc(func(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
		return httpkit.JsonError(apiError{
			cause:  errors.New("no rewards available: alice.hive has no eligible records"),
			public: "no rewards available: alice.hive has no eligible records",
			code:   http.StatusConflict,
		})
	}))
	mux.Handle("POST /pool/fundings", httpkit.HandlerFunc(func(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
		return httpkit.JsonError(apiError{
			cause:  errors.New("authorization error: mallory.hive is not the funding authority"),
			public: "authorization error: mallory.hive is not the funding authority",
			code:   http.StatusForbidden,
		})
	}))
	mux.Handle("GET /requests/{id}", httpkit.HandlerFunc(func(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
		return httpkit.JsonError(apiError{
			cause:  errors.New("asset verification failed: registry returned 503 from 10.0.0.7"),
			public: "asset verification failed",
			code:   http.StatusBadGateway,
		})
	}))
	mux.Handle("GET /pool", httpkit.HandlerFunc(func(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
		return httpkit.JSON(map[string]string{"balance": "78000"})
	}))
	return mux
}

// serve runs one request through the middleware and returns the access record
func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, requestLog) {
	t.Helper()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rec := httptest.NewRecorder()

	logger.NewMiddleware(log)(ledgerAPI()).ServeHTTP(rec, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "one access record per request")

	var entry requestLog
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	return rec, entry
}

func TestNewMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("it records an accepted stake with caller, route and sizes", func(t *testing.T) {
		t.Parallel()

		// Arrange
		body := `{"asset_id":"bee-1"}`
		req := httptest.NewRequest(http.MethodPost, "/stakes", strings.NewReader(body))
		req.Header.Set(httpkit.AccountHeader, "alice.hive")
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))

		// Act
		rec, entry := serve(t, req)

		// Assert
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "INFO", entry.Level)
		assert.Equal(t, "HTTP", entry.Msg)
		assert.Equal(t, "POST /stakes", entry.Route)
		assert.Equal(t, http.StatusAccepted, entry.Status)
		assert.Equal(t, "alice.hive", entry.Account)
		assert.Equal(t, len(body), entry.BytesIn)
		assert.Equal(t, rec.Body.Len(), entry.BytesOut)
		assert.Positive(t, entry.Duration)
		assert.Empty(t, entry.Error)
	})

	t.Run("it records why a request without a caller was rejected", func(t *testing.T) {
		t.Parallel()

		// Arrange
		req := httptest.NewRequest(http.MethodPost, "/stakes", strings.NewReader(`{"asset_id":"bee-1"}`))

		// Act
		rec, entry := serve(t, req)

		// Assert
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INFO", entry.Level)
		assert.Empty(t, entry.Account)
		assert.Equal(t, "missing X-Account-ID header", entry.Error)
	})

	t.Run("it warns about refused ledger operations", func(t *testing.T) {
		t.Parallel()

		for _, target := range []string{"/claims", "/pool/fundings"} {
			// Arrange
			req := httptest.NewRequest(http.MethodPost, target, nil)
			req.Header.Set(httpkit.AccountHeader, "mallory.hive")

			// Act
			_, entry := serve(t, req)

			// Assert
			assert.Equal(t, "WARN", entry.Level, target)
			assert.Equal(t, "mallory.hive", entry.Account)
			assert.NotEmpty(t, entry.Error)
		}
	})

	t.Run("it logs the collaborator's detail that the response hides", func(t *testing.T) {
		t.Parallel()

		// Arrange
		req := httptest.NewRequest(http.MethodGet, "/requests/5b0e7a4c-1d2f-4e7e-9a51-0c9a4f8d2b11", nil)

		// Act
		rec, entry := serve(t, req)

		// Assert
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.7")
		assert.Equal(t, "ERROR", entry.Level)
		assert.Equal(t, "GET /requests/{id}", entry.Route)
		assert.Equal(t, "asset verification failed: registry returned 503 from 10.0.0.7", entry.Error)
	})

	t.Run("it logs unmatched paths without a route", func(t *testing.T) {
		t.Parallel()

		// Arrange
		req := httptest.NewRequest(http.MethodGet, "/pools", nil)

		// Act
		rec, entry := serve(t, req)

		// Assert
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "INFO", entry.Level)
		assert.Equal(t, "/pools", entry.URI)
		assert.Empty(t, entry.Route)
	})

	t.Run("it logs plain errors from handlers that bypass the api error type", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpkit.SetError(r.Context(), errors.New("store unavailable"))
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		// Act
		logger.NewMiddleware(log)(h).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pool", nil))

		// Assert
		var entry requestLog
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "ERROR", entry.Level)
		assert.Equal(t, "store unavailable", entry.Error)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("it tags every record with the service name", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		log := logger.New(&buf, logger.Config{LogLevel: "debug", Service: "ledgerd"})

		// Act
		log.Debug("Ledger restored")

		// Assert
		var entry requestLog
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "DEBUG", entry.Level)
		assert.Equal(t, "ledgerd", entry.Service)
	})

	t.Run("it writes text when asked to be human friendly", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var buf bytes.Buffer
		log := logger.New(&buf, logger.Config{LogHumanFriendly: true})

		// Act
		log.Info("Pool funded", logger.Amount("amount", uint256.NewInt(1000)))

		// Assert
		assert.Contains(t, buf.String(), `msg="Pool funded" amount=1000`)
	})

	t.Run("it falls back to info for unknown levels", func(t *testing.T) {
		t.Parallel()

		// Act & Assert
		assert.Equal(t, slog.LevelInfo, logger.ParseLevel("chatty"))
		assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	})
}

func TestAmount(t *testing.T) {
	t.Parallel()

	t.Run("it renders amounts beyond 64 bits in decimal", func(t *testing.T) {
		t.Parallel()

		// Arrange
		v, err := uint256.FromDecimal("340282366920938463463374607431768211456")
		require.NoError(t, err)

		// Act
		attr := logger.Amount("balance", v)

		// Assert
		assert.Equal(t, "balance", attr.Key)
		assert.Equal(t, "340282366920938463463374607431768211456", attr.Value.String())
	})

	t.Run("it renders a missing amount as zero", func(t *testing.T) {
		t.Parallel()

		// Act
		attr := logger.Amount("reserved", nil)

		// Assert
		assert.Equal(t, "0", attr.Value.String())
	})
}
