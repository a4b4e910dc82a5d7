package bind

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/screwyprof/hivestake/ledger"
	"github.com/screwyprof/hivestake/pkg/httpkit"
	"github.com/screwyprof/hivestake/web/api"
	"github.com/screwyprof/hivestake/web/funding"
)

// Sentinel errors for request binding
var (
	ErrMissingAccount = errors.New("missing " + httpkit.AccountHeader + " header")
	ErrInvalidBody    = errors.New("invalid request body")
	ErrInvalidAmount  = errors.New("amount must be a positive decimal integer")
	ErrInvalidRequest = errors.New("invalid request id")

	ErrInvalidYear    = errors.New("invalid year parameter")
	ErrInvalidPage    = errors.New("invalid page parameter")
	ErrInvalidPerPage = errors.New("invalid per_page parameter")

	ErrYearNotYYYYFormat = errors.New("year must be exactly 4 digits (YYYY format)")
	ErrYearNotNumeric    = errors.New("year must be numeric")

	ErrPageNotNumeric  = errors.New("page must be numeric")
	ErrPageNotPositive = errors.New("page must be positive")

	ErrPerPageNotNumeric  = errors.New("per_page must be numeric")
	ErrPerPageNotPositive = errors.New("per_page must be positive")
	ErrPerPageTooLarge    = fmt.Errorf("per_page must be between 1 and %d", funding.MaxPerPage)
)

// Caller returns the account asserted by the gateway
func Caller(r *http.Request) (ledger.AccountID, error) {
	caller := r.Header.Get(httpkit.AccountHeader)
	if caller == "" {
		return "", ErrMissingAccount
	}
	return ledger.AccountID(caller), nil
}

// AccountPath returns the {account} path segment
func AccountPath(r *http.Request) ledger.AccountID {
	return ledger.AccountID(r.PathValue("account"))
}

// RequestPath parses the {id} path segment
func RequestPath(r *http.Request) (ledger.RequestID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return ledger.RequestID{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return id, nil
}

func decode(r *http.Request, dst any) error {
	if err := httpkit.DecodeJSON(r, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	return nil
}

// StakeRequest binds POST /stakes
func StakeRequest(r *http.Request) (ledger.AssetID, error) {
	var req api.StakeRequest
	if err := decode(r, &req); err != nil {
		return "", err
	}
	return ledger.AssetID(req.AssetID), nil
}

// BatchStakeRequest binds POST /stakes/batch
func BatchStakeRequest(r *http.Request) ([]ledger.TransferEvent, error) {
	var req api.BatchStakeRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	events := make([]ledger.TransferEvent, len(req.Events))
	for i, ev := range req.Events {
		ids := make([]ledger.AssetID, len(ev.AssetIDs))
		for j, id := range ev.AssetIDs {
			ids[j] = ledger.AssetID(id)
		}
		events[i] = ledger.TransferEvent{
			PreviousOwner: ledger.AccountID(ev.PreviousOwner),
			Destination:   ledger.AccountID(ev.Destination),
			AssetIDs:      ids,
		}
	}
	return events, nil
}

// UnstakeRequest binds POST /unstakes; the ledger rejects selectors naming both or neither
func UnstakeRequest(r *http.Request) (ledger.Selector, error) {
	var req api.UnstakeRequest
	if err := decode(r, &req); err != nil {
		return ledger.Selector{}, err
	}
	return ledger.Selector{
		RecordID: ledger.RecordID(req.RecordID),
		AssetID:  ledger.AssetID(req.AssetID),
	}, nil
}

// FundRequest binds POST /pool/fundings
func FundRequest(r *http.Request) (*uint256.Int, error) {
	var req api.FundRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}

	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, req.Amount)
	}
	return amount, nil
}

// AuthorityRequest binds PUT /pool/authority
func AuthorityRequest(r *http.Request) (ledger.AccountID, error) {
	var req api.AuthorityRequest
	if err := decode(r, &req); err != nil {
		return "", err
	}
	return ledger.AccountID(req.Account), nil
}

// GetFundingsRequest binds GET /pool/fundings; absent parameters stay zero and pick defaults later
func GetFundingsRequest(r *http.Request) (api.FundingsRequest, error) {
	var req api.FundingsRequest
	query := r.URL.Query()

	if yearParam := query.Get("year"); yearParam != "" {
		year, err := parseYearYYYY(yearParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidYear, err)
		}
		req.Year = year
	}

	if pageParam := query.Get("page"); pageParam != "" {
		page, err := parsePageNumber(pageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPage, err)
		}
		req.Page = page
	}

	if perPageParam := query.Get("per_page"); perPageParam != "" {
		perPage, err := parsePerPageLimit(perPageParam)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidPerPage, err)
		}
		req.PerPage = perPage
	}

	return req, nil
}

// parseYearYYYY checks the format only; the range is a funding.Criteria concern
func parseYearYYYY(yearParam string) (uint64, error) {
	if len(yearParam) != 4 {
		return 0, ErrYearNotYYYYFormat
	}

	year, err := strconv.ParseUint(yearParam, 10, 64)
	if err != nil {
		return 0, ErrYearNotNumeric
	}

	return year, nil
}

func parsePageNumber(pageParam string) (uint64, error) {
	page, err := strconv.ParseUint(pageParam, 10, 64)
	if err != nil {
		return 0, ErrPageNotNumeric
	}

	if page == 0 {
		return 0, ErrPageNotPositive
	}

	return page, nil
}

func parsePerPageLimit(perPageParam string) (uint64, error) {
	perPage, err := strconv.ParseUint(perPageParam, 10, 64)
	if err != nil {
		return 0, ErrPerPageNotNumeric
	}

	if perPage == 0 {
		return 0, ErrPerPageNotPositive
	}

	if perPage > funding.MaxPerPage {
		return 0, ErrPerPageTooLarge
	}

	return perPage, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
