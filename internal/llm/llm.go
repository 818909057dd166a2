package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrUnavailable = errors.New("llm unavailable")
	ErrTimeout     = errors.New("llm timeout")
	ErrRateLimited = errors.New("llm rate limited")
)

type Decision string

const (
	DecisionSelect         Decision = "select"
	DecisionAskClarify     Decision = "ask_clarify"
	DecisionRequestContext Decision = "request_context"
)

type OptionRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type ClarifyRequest struct {
	Input           string
	Options         []OptionRef
	Context         string
	Scope           string
	ContractVersion string
	Attempt         int
}

// ClarifyResponse is a validated model decision. Downgrade names the fallback
// reason when validation rewrote the decision to ask_clarify.
type ClarifyResponse struct {
	Decision      Decision
	ChoiceID      string
	Confidence    float64
	Reason        string
	NeededContext []string
	Downgrade     string
}

type Clarifier interface {
	Clarify(ctx context.Context, req ClarifyRequest) (ClarifyResponse, error)
}

// StatusError maps a provider HTTP status onto the package sentinels.
func StatusError(provider string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s returned status %d", ErrRateLimited, provider, status)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s returned status %d", ErrTimeout, provider, status)
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, provider, status)
	default:
		return fmt.Errorf("%s completion failed with status %d", provider, status)
	}
}

// TransportError tags client-side deadline failures with ErrTimeout.
func TransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

// IsRateLimited recognises rate-limit failures, including providers that only
// say so in the error text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit") || strings.Contains(lower, "status 429")
}
