// Package inference is the client for the remote image transformation API:
// background removal, AI background replacement and prompt rewriting.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"strings"

	nhttp "github.com/chaos-io/clearpic/util/http"
)

const (
	removeBGPath      = "/remove-bg"
	replaceBGPath     = "/replace-bg"
	rewritePromptPath = "/rewrite-prompt"
)

// NetworkError means the service could not be reached at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("inference service unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteProcessingError means the service was reached but refused or failed
// the transformation. Message carries the `detail` field of the error body
// when one was parseable, else the status text.
type RemoteProcessingError struct {
	Status  int
	Message string
}

func (e *RemoteProcessingError) Error() string {
	return fmt.Sprintf("inference failed (%d): %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	cli     nhttp.IClient
}

// NewClient builds a client for the inference API rooted at baseURL. A nil
// cli falls back to the default HTTP client.
func NewClient(baseURL string, cli nhttp.IClient) *Client {
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), cli: cli}
}

// RemoveBackground submits the image and returns the transformed bytes.
func (c *Client) RemoveBackground(ctx context.Context, name string, img []byte) ([]byte, error) {
	form, contentType, err := buildForm(name, img, nil)
	if err != nil {
		return nil, err
	}
	return c.postImage(ctx, removeBGPath, form, contentType)
}

// ReplaceBackground submits the image plus a background prompt and returns
// the composited bytes.
func (c *Client) ReplaceBackground(ctx context.Context, name string, img []byte, prompt string) ([]byte, error) {
	form, contentType, err := buildForm(name, img, map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	return c.postImage(ctx, replaceBGPath, form, contentType)
}

// RewritePrompt asks the service to improve a background description.
func (c *Client) RewritePrompt(ctx context.Context, prompt string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("prompt", prompt); err != nil {
		return "", fmt.Errorf("write prompt field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	var resp struct {
		RewrittenPrompt string `json:"rewritten_prompt"`
	}
	err := c.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: c.baseURL + rewritePromptPath,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &resp,
	})
	if err != nil {
		return "", c.mapError(err)
	}
	return resp.RewrittenPrompt, nil
}

func (c *Client) postImage(ctx context.Context, path string, form io.Reader, contentType string) ([]byte, error) {
	var raw []byte
	err := c.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI:  c.baseURL + path,
		Method:      "POST",
		Header:      map[string]string{"Content-Type": contentType},
		Body:        form,
		RawResponse: &raw,
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	return raw, nil
}

func buildForm(name string, img []byte, fields map[string]string) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// mapError turns transport-level errors into the taxonomy callers match on.
func (c *Client) mapError(err error) error {
	var statusErr *nhttp.StatusError
	if errors.As(err, &statusErr) {
		return &RemoteProcessingError{
			Status:  statusErr.Code,
			Message: extractDetail(statusErr),
		}
	}
	return &NetworkError{Err: err}
}

func extractDetail(statusErr *nhttp.StatusError) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(statusErr.Body, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return nethttp.StatusText(statusErr.Code)
}
