package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrUnimplementedProvider is returned for providers that are recognized but
	// have no working client (openai, anthropic) and for unknown names.
	ErrUnimplementedProvider = errors.New("unimplemented provider")

	// ErrMissingAPIKey is a configuration error: the deployment has no key for the provider.
	// It is fatal for the request and never retried.
	ErrMissingAPIKey = errors.New("provider api key is not configured")

	// ErrEmptyConversation is returned when no user/model turn is left after
	// system messages are pulled out.
	ErrEmptyConversation = errors.New("conversation has no messages")
)

// HTTPError is a non-2xx response from a provider API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}
