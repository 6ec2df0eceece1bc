package billing

import (
	"context"
	"fmt"
	"strings"

	nhttp "github.com/chaos-io/clearpic/util/http"
)

type CheckoutKind string

const (
	CheckoutPurchase     CheckoutKind = "purchase"
	CheckoutSubscription CheckoutKind = "subscription"
)

// RedirectTarget is where the billing provider's hosted flow continues:
// a checkout session id, or a portal URL.
type RedirectTarget struct {
	SessionID string `json:"sessionId,omitempty"`
	URL       string `json:"url,omitempty"`
}

// SessionCreationError means the backend could not start a billing flow.
// Whether the user completes payment afterwards is invisible to us; the
// ledger is only trusted again after a re-fetch.
type SessionCreationError struct {
	Err error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("create billing session: %v", e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

type SessionClient struct {
	baseURL string
	cli     nhttp.IClient
}

func NewSessionClient(baseURL string, cli nhttp.IClient) *SessionClient {
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	return &SessionClient{baseURL: strings.TrimRight(baseURL, "/"), cli: cli}
}

// StartCheckout asks the backend for a checkout session for a credit
// package or a subscription plan and returns the redirect target.
func (c *SessionClient) StartCheckout(ctx context.Context, kind CheckoutKind, selectionID, userID string) (RedirectTarget, error) {
	var path string
	var body map[string]string
	switch kind {
	case CheckoutPurchase:
		path = "/credits/purchase"
		body = map[string]string{"packageId": selectionID, "userId": userID}
	case CheckoutSubscription:
		path = "/subscription/create"
		body = map[string]string{"planId": selectionID, "userId": userID}
	default:
		return RedirectTarget{}, &SessionCreationError{Err: fmt.Errorf("unknown checkout kind %q", kind)}
	}

	var target RedirectTarget
	err := c.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: c.baseURL + path,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Response:   &target,
	})
	if err != nil {
		return RedirectTarget{}, &SessionCreationError{Err: err}
	}
	if target.SessionID == "" {
		return RedirectTarget{}, &SessionCreationError{Err: fmt.Errorf("backend returned no session id")}
	}
	return target, nil
}

// PortalSession asks for a customer-portal URL for subscription management.
func (c *SessionClient) PortalSession(ctx context.Context, userID string) (RedirectTarget, error) {
	var target RedirectTarget
	err := c.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: c.baseURL + "/subscription/portal",
		Method:     "POST",
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       map[string]string{"userId": userID},
		Response:   &target,
	})
	if err != nil {
		return RedirectTarget{}, &SessionCreationError{Err: err}
	}
	if target.URL == "" {
		return RedirectTarget{}, &SessionCreationError{Err: fmt.Errorf("backend returned no portal url")}
	}
	return target, nil
}
