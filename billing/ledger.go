// Package billing talks to the credits/subscription backend: ledger reads,
// checkout/portal session creation and the static pricing catalog. The
// backend is the sole authority on balances — nothing here mutates credits
// locally, state is only refreshed by re-fetching.
package billing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	nhttp "github.com/chaos-io/clearpic/util/http"
)

type TransactionKind string

const (
	KindPurchase TransactionKind = "purchase"
	KindUsage    TransactionKind = "usage"
	KindRefund   TransactionKind = "refund"
)

// Transaction is one ledger entry as the backend reports it, newest first.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      int             `json:"amount"`
	Type        TransactionKind `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsCredit reports whether the entry adds to the balance for display:
// purchases and refunds are credits, usage is a debit.
func (t Transaction) IsCredit() bool {
	return t.Type == KindPurchase || t.Type == KindRefund
}

// Signed returns the display amount: positive for credits, negative for
// debits, regardless of how the backend signed the raw amount.
func (t Transaction) Signed() int {
	abs := t.Amount
	if abs < 0 {
		abs = -abs
	}
	if t.IsCredit() {
		return abs
	}
	return -abs
}

type LedgerClient struct {
	baseURL string
	cli     nhttp.IClient
}

func NewLedgerClient(baseURL string, cli nhttp.IClient) *LedgerClient {
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	return &LedgerClient{baseURL: strings.TrimRight(baseURL, "/"), cli: cli}
}

// FetchBalance reads the user's current credit balance.
func (c *LedgerClient) FetchBalance(ctx context.Context, userID string) (int, error) {
	var resp struct {
		Credits int `json:"credits"`
	}
	err := c.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: c.baseURL + "/credits/balance?user_id=" + url.QueryEscape(userID),
		Method:     "GET",
		Response:   &resp,
	})
	if err != nil {
		return 0, fmt.Errorf("fetch credit balance: %w", err)
	}
	return resp.Credits, nil
}

// FetchHistory reads the user's transaction history, newest first.
func (c *LedgerClient) FetchHistory(ctx context.Context, userID string) ([]Transaction, error) {
	var resp []Transaction
	err := c.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: c.baseURL + "/credits/history?user_id=" + url.QueryEscape(userID),
		Method:     "GET",
		Response:   &resp,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch credit history: %w", err)
	}
	return resp, nil
}
