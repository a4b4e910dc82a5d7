package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/holiman/uint256"
)

// Sentinel errors for settlement calls
var (
	ErrInvalidTransfer  = errors.New("invalid transfer request")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Client moves fungible settlement units between accounts
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new settlement client with custom HTTP client and base URL
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// TransferRequest is the wire body of a transfer; Amount is a base-10 integer string
type TransferRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
	Memo       string `json:"memo,omitempty"`
}

// NewTransferRequest renders amount as a decimal string
func NewTransferRequest(sender, receiver string, amount *uint256.Int, memo string) TransferRequest {
	return TransferRequest{
		SenderID:   sender,
		ReceiverID: receiver,
		Amount:     amount.Dec(),
		Memo:       memo,
	}
}

// Transfer asks the settlement ledger to move Amount from sender to receiver
func (c *Client) Transfer(ctx context.Context, req TransferRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return nil
}

func validate(req TransferRequest) error {
	if req.SenderID == "" || req.ReceiverID == "" {
		return fmt.Errorf("%w: sender and receiver are required", ErrInvalidTransfer)
	}

	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount %q: %v", ErrInvalidTransfer, req.Amount, err)
	}
	if amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	}

	return nil
}
