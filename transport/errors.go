package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/cobaltplatform/screeningflow/types"
)

// APIError is the service's structured error envelope. The server is
// authoritative; the status code and code field are reported as-is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d (%s)", e.StatusCode, e.Code)
}

// ConfirmationRequiredError is the submission endpoint's soft stop: the
// answers were not committed, and the carried prompt must be shown before
// retrying with force. It is an expected state transition, not a failure.
type ConfirmationRequiredError struct {
	Prompt types.ConfirmationPrompt
}

func (e *ConfirmationRequiredError) Error() string {
	return "confirmation required before submission"
}

// IsCancellation reports whether err is an aborted or superseded request,
// i.e. the caller's context was canceled. Cancellations are expected and must
// never be surfaced as failures. Timeouts are not cancellations: nobody asked
// for the request to stop, so they take the ordinary failure path.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// errorEnvelope is the wire shape of a non-2xx response body.
type errorEnvelope struct {
	Code                        string                    `json:"code"`
	Message                     string                    `json:"message"`
	ScreeningConfirmationPrompt *types.ConfirmationPrompt `json:"screeningConfirmationPrompt,omitempty"`
}
