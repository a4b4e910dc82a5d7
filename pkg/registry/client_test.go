package registry_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/pkg/registry"
)

func TestClientToken(t *testing.T) {
	t.Parallel()

	t.Run("it parses ownership and metadata", func(t *testing.T) {
		t.Parallel()

		// Arrange
		want := createTestToken("bee-1", "custody.hive", "alice", "Body", "Queen")
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, want))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)

		// Act
		got, err := client.Token(t.Context(), "bee-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("it reports missing tokens", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Token(t.Context(), "bee-404")

		// Assert
		assert.ErrorIs(t, err, registry.ErrTokenNotFound)
	})

	t.Run("it rejects a response for another token", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, createTestToken("bee-2", "custody.hive", "", "Body", "Queen")))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Token(t.Context(), "bee-1")

		// Assert
		assert.ErrorIs(t, err, registry.ErrMalformedResponse)
	})

	t.Run("it rejects a body that is not JSON", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Token(t.Context(), "bee-1")

		// Assert
		assert.ErrorIs(t, err, registry.ErrMalformedResponse)
	})

	t.Run("it surfaces unexpected status codes", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusServiceUnavailable, nil))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)

		// Act
		_, err := client.Token(t.Context(), "bee-1")

		// Assert
		assert.ErrorIs(t, err, registry.ErrUnexpectedStatus)
	})
}

func TestClientBatchTransfer(t *testing.T) {
	t.Parallel()

	t.Run("it posts all token ids in one request", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var got registry.BatchTransferRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/tokens/batch-transfer", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)
		req := registry.BatchTransferRequest{
			SenderID:   "custody.hive",
			ReceiverID: "alice",
			TokenIDs:   []string{"bee-1", "bee-2"},
		}

		// Act
		err := client.BatchTransfer(t.Context(), req)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, req, got)
	})

	t.Run("it fails when the registry refuses", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(jsonHandler(t, http.StatusConflict, nil))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)

		// Act
		err := client.BatchTransfer(t.Context(), registry.BatchTransferRequest{
			SenderID: "custody.hive", ReceiverID: "alice", TokenIDs: []string{"bee-1"},
		})

		// Assert
		assert.ErrorIs(t, err, registry.ErrUnexpectedStatus)
	})

	t.Run("it rejects an empty token list without calling out", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := registry.NewClient(http.DefaultClient, "http://127.0.0.1:0")

		// Act
		err := client.BatchTransfer(t.Context(), registry.BatchTransferRequest{SenderID: "a", ReceiverID: "b"})

		// Assert
		assert.ErrorIs(t, err, registry.ErrInvalidTransferReq)
	})
}

func TestClientGetTransfers(t *testing.T) {
	t.Parallel()

	t.Run("it sends feed filters and parses transfers", func(t *testing.T) {
		t.Parallel()

		// Arrange
		ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		want := []registry.Transfer{
			{ID: 8, SenderID: "alice", ReceiverID: "custody.hive", TokenIDs: []string{"bee-1", "bee-2"}, Timestamp: ts},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "/v1/transfers", r.URL.Path)
			assert.Equal(t, "custody.hive", q.Get("receiver"))
			assert.Equal(t, "7", q.Get("id.gt"))
			assert.Equal(t, "50", q.Get("limit"))
			assert.Equal(t, "id", q.Get("sort.asc"))
			jsonHandler(t, http.StatusOK, want)(w, r)
		}))
		defer server.Close()

		client := registry.NewClient(server.Client(), server.URL)
		lastID := int64(7)

		// Act
		got, err := client.GetTransfers(t.Context(), registry.TransfersRequest{
			Receiver:      "custody.hive",
			Limit:         50,
			IDGreaterThan: &lastID,
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestCachingClient(t *testing.T) {
	t.Parallel()

	t.Run("it fetches metadata once per token", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var calls atomic.Int32
		token := createTestToken("bee-1", "custody.hive", "", "Wings", "Diamond")
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			jsonHandler(t, http.StatusOK, token)(w, r)
		}))
		defer server.Close()

		client, err := registry.NewCachingClient(registry.NewClient(server.Client(), server.URL), 8)
		require.NoError(t, err)

		// Act
		first, err1 := client.Metadata(t.Context(), "bee-1")
		second, err2 := client.Metadata(t.Context(), "bee-1")

		// Assert
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, token.Metadata, first)
		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 1, client.Len())
	})

	t.Run("it does not cache failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		client, err := registry.NewCachingClient(registry.NewClient(server.Client(), server.URL), 0)
		require.NoError(t, err)

		// Act
		_, err = client.Metadata(t.Context(), "bee-1")

		// Assert
		assert.ErrorIs(t, err, registry.ErrTokenNotFound)
		assert.Equal(t, 0, client.Len())
	})

	t.Run("it always asks the registry for ownership", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			jsonHandler(t, http.StatusOK, createTestToken("bee-1", "custody.hive", "", "Body", "Queen"))(w, r)
		}))
		defer server.Close()

		client, err := registry.NewCachingClient(registry.NewClient(server.Client(), server.URL), 8)
		require.NoError(t, err)

		// Act
		_, _ = client.Token(t.Context(), "bee-1")
		_, _ = client.Token(t.Context(), "bee-1")

		// Assert
		assert.Equal(t, int32(2), calls.Load())
	})
}

// createTestToken builds a token carrying one trait
func createTestToken(id, owner, depositor, trait, value string) registry.Token {
	return registry.Token{
		TokenID:     id,
		OwnerID:     owner,
		DepositorID: depositor,
		Metadata: registry.Metadata{
			ReferenceBlob: registry.ReferenceBlob{
				Attributes: []registry.Attribute{{TraitType: trait, Value: value}},
			},
		},
	}
}

// jsonHandler writes body as JSON with the given status
func jsonHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)

		if body == nil {
			return
		}

		response, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal test data")

		_, err = w.Write(response)
		require.NoError(t, err, "Failed to write response")
	}
}
