package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Reason classifies why an upstream call failed.
type Reason string

const (
	ReasonAuth      Reason = "auth"
	ReasonRateLimit Reason = "rate_limit"
	ReasonTimeout   Reason = "timeout"
	ReasonNetwork   Reason = "network"
	ReasonMalformed Reason = "malformed"
	ReasonOther     Reason = "other"
)

// ProviderError is returned by the gateway whenever the upstream call fails.
type ProviderError struct {
	Provider string
	Model    string
	Reason   Reason
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %s: %v", e.Provider, e.Model, e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request could succeed later.
func (e *ProviderError) Retryable() bool {
	switch e.Reason {
	case ReasonRateLimit, ReasonTimeout, ReasonNetwork:
		return true
	default:
		return false
	}
}

// statusError is the Ollama client's HTTP failure.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama API error: %d (%s)", e.StatusCode, e.Body)
}

var errMalformedReply = errors.New("malformed provider reply")

func wrapProviderError(provider, model string, err error) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProviderError{Provider: provider, Model: model, Reason: classifyError(err), Err: err}
}

func classifyError(err error) Reason {
	if err == nil {
		return ReasonOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, errMalformedReply) {
		return ReasonMalformed
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return classifyStatus(anthropicErr.StatusCode)
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return classifyStatus(openaiErr.StatusCode)
	}
	var status *statusError
	if errors.As(err, &status) {
		return classifyStatus(status.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonNetwork
	}
	return classifyMessage(err.Error())
}

func classifyStatus(code int) Reason {
	switch {
	case code == 401 || code == 403:
		return ReasonAuth
	case code == 429 || code == 529:
		return ReasonRateLimit
	case code == 408 || code == 504:
		return ReasonTimeout
	case code == 400 || code == 422:
		return ReasonMalformed
	default:
		return ReasonOther
	}
}

func classifyMessage(msg string) Reason {
	lower := strings.ToLower(msg)
	patterns := []struct {
		reason Reason
		words  []string
	}{
		{ReasonRateLimit, []string{"rate limit", "rate_limit", "too many requests", "overloaded"}},
		{ReasonAuth, []string{"unauthorized", "api key", "authentication", "forbidden"}},
		{ReasonTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
		{ReasonNetwork, []string{"connection refused", "no such host", "connection reset", "eof"}},
	}
	for _, p := range patterns {
		for _, w := range p.words {
			if strings.Contains(lower, w) {
				return p.reason
			}
		}
	}
	return ReasonOther
}
