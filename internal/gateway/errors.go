package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAccountNotFound is returned by AccountData when the address has no
// account on chain.
var ErrAccountNotFound = errors.New("account not found")

// RateLimitError means the provider kept answering 429 until the backoff
// budget ran out.
type RateLimitError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rpc %s: rate limited after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError wraps an RPC failure that exhausted its short retry budget
// without being a rate limit.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err looks like an HTTP 429 / provider
// throttle response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit")
}
