package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Provider error kinds. Handlers map these to HTTP statuses; the pipeline
// decides which are retryable. Check with errors.Is.
var (
	// ErrQuotaExceeded means the provider rejected the call for billing/quota
	// reasons. Never retried; surfaced as 429.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrInvalidCredentials means the configured API key was rejected.
	// Never retried; surfaced as 401.
	ErrInvalidCredentials = errors.New("invalid provider credentials")

	// ErrContentPolicy means the prompt was refused by the provider's safety
	// filter. Image generation retries once with a softened prompt.
	ErrContentPolicy = errors.New("prompt rejected by content policy")

	// ErrTimeout means the underlying client gave up waiting. Retryable at the
	// stage level; surfaced as 504 when exhausted in the text stage.
	ErrTimeout = errors.New("provider request timed out")
)

// classifyError maps raw SDK/network errors onto the error kinds above.
// Unclassified errors pass through unchanged and are treated as transient.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %s", ErrTimeout, apiErr.Message)
		}
		if code, ok := apiErr.Code.(string); ok {
			switch code {
			case "insufficient_quota", "billing_hard_limit_reached":
				return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message)
			case "content_policy_violation", "moderation_blocked":
				return fmt.Errorf("%w: %s", ErrContentPolicy, apiErr.Message)
			}
		}
	}

	return err
}

// retryable reports whether a classified error is worth another attempt.
// Quota, credential and policy failures are terminal for the attempt loop.
func retryable(err error) bool {
	return !errors.Is(err, ErrQuotaExceeded) &&
		!errors.Is(err, ErrInvalidCredentials) &&
		!errors.Is(err, ErrContentPolicy)
}
