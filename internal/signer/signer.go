// Package signer integrates the optional external signing collaborator: given
// a record's content digest it returns a signature to attach to a transaction
// before the transaction is placed in a block.
package signer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/KIWI0912/notar/internal/digest"
)

// Signer produces a signature over a content digest. Signing itself is out of
// scope; implementations delegate to an external provider.
type Signer interface {
	Sign(ctx context.Context, d digest.Digest) (string, error)
}

type signRequest struct {
	Digest string `json:"digest"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// HTTPSigner calls a remote signing endpoint over HTTP with bounded retries.
type HTTPSigner struct {
	client     *resty.Client
	maxRetries uint
}

// NewHTTPSigner returns a signer posting to baseURL/sign.
func NewHTTPSigner(baseURL string, maxRetries uint) *HTTPSigner {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	return &HTTPSigner{client: client, maxRetries: maxRetries}
}

// Sign posts the digest and returns the provider's signature, retrying with
// linear backoff on transport or server errors.
func (s *HTTPSigner) Sign(ctx context.Context, d digest.Digest) (string, error) {
	var lastErr error

	for attempt := uint(1); attempt <= s.maxRetries; attempt++ {
		var out signResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(signRequest{Digest: d.String()}).
			SetResult(&out).
			Post("/sign")

		switch {
		case err != nil:
			lastErr = err
		case resp.IsError():
			lastErr = fmt.Errorf("signer returned status %d", resp.StatusCode())
		case out.Signature == "":
			return "", fmt.Errorf("signer returned an empty signature")
		default:
			return out.Signature, nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		slog.Debug("Retrying signer call", "digest", d, "attempt", attempt, "error", lastErr)
		if attempt < s.maxRetries {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}

	return "", errors.WithMessage(lastErr, fmt.Sprintf("Failed after %d retries", s.maxRetries))
}
