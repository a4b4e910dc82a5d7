package settlement_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/hivestake/pkg/settlement"
)

func TestClientTransfer(t *testing.T) {
	t.Parallel()

	t.Run("it posts the amount as a decimal string", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var got settlement.TransferRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/transfers", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := settlement.NewClient(server.Client(), server.URL)
		amount, err := uint256.FromDecimal("340282366920938463463374607431768211456")
		require.NoError(t, err)

		// Act
		err = client.Transfer(t.Context(), settlement.NewTransferRequest("pool.hive", "alice", amount, "claim"))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, settlement.TransferRequest{
			SenderID:   "pool.hive",
			ReceiverID: "alice",
			Amount:     "340282366920938463463374607431768211456",
			Memo:       "claim",
		}, got)
	})

	t.Run("it fails on a non-success status", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		}))
		defer server.Close()

		client := settlement.NewClient(server.Client(), server.URL)

		// Act
		err := client.Transfer(t.Context(), settlement.NewTransferRequest("treasury", "pool.hive", uint256.NewInt(10), ""))

		// Assert
		assert.ErrorIs(t, err, settlement.ErrUnexpectedStatus)
	})

	t.Run("it fails when the ledger is unreachable", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := settlement.NewClient(http.DefaultClient, url)

		// Act
		err := client.Transfer(t.Context(), settlement.NewTransferRequest("treasury", "pool.hive", uint256.NewInt(10), ""))

		// Assert
		assert.Error(t, err)
	})

	t.Run("it rejects zero amounts without calling out", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := settlement.NewClient(http.DefaultClient, "http://127.0.0.1:0")

		// Act
		err := client.Transfer(t.Context(), settlement.NewTransferRequest("treasury", "pool.hive", uint256.NewInt(0), ""))

		// Assert
		assert.ErrorIs(t, err, settlement.ErrInvalidTransfer)
	})

	t.Run("it rejects amounts that are not integers", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := settlement.NewClient(http.DefaultClient, "http://127.0.0.1:0")

		// Act
		err := client.Transfer(t.Context(), settlement.TransferRequest{SenderID: "a", ReceiverID: "b", Amount: "1.5"})

		// Assert
		assert.ErrorIs(t, err, settlement.ErrInvalidTransfer)
	})
}
