package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for registry calls
var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrUnexpectedStatus   = errors.New("unexpected status code")
	ErrMalformedResponse  = errors.New("malformed registry response")
	ErrInvalidTransferReq = errors.New("invalid batch transfer request")
)

// Client talks to the asset registry HTTP API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new registry client with custom HTTP client and base URL
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Attribute is a single trait of a token's metadata
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// ReferenceBlob holds the off-chain part of the metadata
type ReferenceBlob struct {
	Attributes []Attribute `json:"attributes"`
}

// Metadata is the fixed metadata schema served by the registry
type Metadata struct {
	Title         string        `json:"title,omitempty"`
	ReferenceBlob ReferenceBlob `json:"reference_blob"`
}

// Token represents ownership and metadata of one asset
type Token struct {
	TokenID string `json:"token_id"`
	OwnerID string `json:"owner_id"`
	// DepositorID is the account that moved the token into its current owner's custody
	DepositorID string   `json:"depositor_id,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Transfer is one entry of the registry transfer feed
type Transfer struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	TokenIDs   []string  `json:"token_ids"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransfersRequest represents parameters for reading the transfer feed
type TransfersRequest struct {
	Receiver      string
	Limit         uint64
	IDGreaterThan *int64
}

// BatchTransferRequest moves several tokens in one all-or-nothing call
type BatchTransferRequest struct {
	SenderID   string   `json:"sender_id"`
	ReceiverID string   `json:"receiver_id"`
	TokenIDs   []string `json:"token_ids"`
}

// Token retrieves ownership and metadata for a single token
func (c *Client) Token(ctx context.Context, tokenID string) (Token, error) {
	u := fmt.Sprintf("%s/v1/tokens/%s", c.baseURL, url.PathEscape(tokenID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Token{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Token{}, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Token{}, fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
	default:
		return Token{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return Token{}, fmt.Errorf("%w: decoding response: %v", ErrMalformedResponse, err)
	}

	if token.TokenID != tokenID {
		return Token{}, fmt.Errorf("%w: asked for %q, got %q", ErrMalformedResponse, tokenID, token.TokenID)
	}
	if token.OwnerID == "" {
		return Token{}, fmt.Errorf("%w: token %q has no owner", ErrMalformedResponse, tokenID)
	}

	return token, nil
}

// Metadata retrieves only the metadata of a token
func (c *Client) Metadata(ctx context.Context, tokenID string) (Metadata, error) {
	token, err := c.Token(ctx, tokenID)
	if err != nil {
		return Metadata{}, err
	}
	return token.Metadata, nil
}

// BatchTransfer asks the registry to move all tokens at once; either all move or none do
func (c *Client) BatchTransfer(ctx context.Context, req BatchTransferRequest) error {
	if req.SenderID == "" || req.ReceiverID == "" || len(req.TokenIDs) == 0 {
		return ErrInvalidTransferReq
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens/batch-transfer", bytes.NewReader(body))
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

// GetTransfers retrieves the transfer feed in ascending id order
func (c *Client) GetTransfers(ctx context.Context, req TransfersRequest) ([]Transfer, error) {
	query := url.Values{}
	query.Set("limit", strconv.FormatUint(req.Limit, 10))
	query.Set("sort.asc", "id")
	if req.Receiver != "" {
		query.Set("receiver", req.Receiver)
	}
	if req.IDGreaterThan != nil {
		query.Set("id.gt", strconv.FormatInt(*req.IDGreaterThan, 10))
	}

	u := fmt.Sprintf("%s/v1/transfers?%s", c.baseURL, query.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var transfers []Transfer
	if err := json.NewDecoder(resp.Body).Decode(&transfers); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrMalformedResponse, err)
	}

	return transfers, nil
}
