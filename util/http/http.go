package http

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam describes a single request. Body may be an io.Reader, a
// []byte, or any JSON-marshalable value. When RawResponse is set the
// response body is copied into it verbatim; otherwise a non-nil Response
// is filled by JSON unmarshalling.
type RequestParam struct {
	RequestURI  string
	Method      string
	Header      map[string]string
	Body        interface{}
	Response    interface{}
	RawResponse *[]byte

	Timeout time.Duration
}
