package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a provider failure into an actionable category.
type ErrorKind string

const (
	KindAuth               ErrorKind = "auth"
	KindRateLimit          ErrorKind = "rate_limit"
	KindInsufficientCredit ErrorKind = "insufficient_credit"
	KindPayloadTooLarge    ErrorKind = "payload_too_large"
	KindModelNotFound      ErrorKind = "model_not_found"
	KindUpstream           ErrorKind = "upstream_unavailable"
	KindTimeout            ErrorKind = "timeout"
	KindEmptyCompletion    ErrorKind = "empty_completion"
	KindGeneric            ErrorKind = "generic"
)

// ProviderError is a classified provider failure. The fallback layer records
// these per candidate and advances to the next model; within one attempt
// there is never an automatic retry.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s:%s: %s: %s (%s)", e.Provider, e.Model, e.Kind, e.Message, e.Remedy())
}

// Remedy returns the actionable advice for this error kind.
func (e *ProviderError) Remedy() string {
	switch e.Kind {
	case KindAuth:
		return "check the provider API key"
	case KindRateLimit:
		return "wait and retry, or switch to a fallback model"
	case KindInsufficientCredit:
		return "top up the provider account balance"
	case KindPayloadTooLarge:
		return "reduce the document or prompt size"
	case KindModelNotFound:
		return "verify the configured model name"
	case KindUpstream:
		return "the provider is unavailable; try again later"
	case KindTimeout:
		return "increase the call timeout or use a faster model"
	case KindEmptyCompletion:
		return "the model returned no text; try another model"
	default:
		return "see the provider message"
	}
}

// classifyHTTP maps an HTTP status plus the provider's error text to a kind.
func classifyHTTP(provider, model string, status int, errType, message string) *ProviderError {
	lower := strings.ToLower(errType + " " + message)
	kind := KindGeneric
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusPaymentRequired,
		strings.Contains(lower, "insufficient_quota"),
		strings.Contains(lower, "credit"),
		strings.Contains(lower, "billing"):
		kind = KindInsufficientCredit
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusRequestEntityTooLarge,
		strings.Contains(lower, "request_too_large"),
		strings.Contains(lower, "maximum context length"),
		strings.Contains(lower, "prompt is too long"):
		kind = KindPayloadTooLarge
	case status == http.StatusNotFound, strings.Contains(lower, "model_not_found"):
		kind = KindModelNotFound
	case status >= 500:
		kind = KindUpstream
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &ProviderError{Provider: provider, Model: model, Kind: kind, Status: status, Message: message}
}

// classifyTransport maps a transport-level error (no HTTP response) to a
// ProviderError. Context deadline expiry becomes a timeout.
func classifyTransport(provider, model string, err error) *ProviderError {
	kind := KindUpstream
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Model: model, Kind: kind, Message: err.Error()}
}
