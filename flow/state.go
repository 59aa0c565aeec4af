package flow

import "github.com/cobaltplatform/screeningflow/types"

// State is the controller's display state.
type State string

const (
	// StateLoading is entered whenever a question context fetch is in flight.
	StateLoading State = "loading"
	// StateQuestion shows the current question and its answer buffer.
	StateQuestion State = "question"
	// StateConfirming shows a confirmation prompt; Variant says which kind.
	StateConfirming State = "confirming"
)

// ConfirmationVariant tags which confirmation is showing, so a pre-question
// consent screen and a pre-submit soft warning can never be confused even
// though both render as a prompt.
type ConfirmationVariant string

const (
	ConfirmPreQuestion ConfirmationVariant = "pre_question"
	ConfirmPreSubmit   ConfirmationVariant = "pre_submit"
)

// Snapshot is what a host renders from. Question and Selections are set in
// StateQuestion, Prompt and Variant in StateConfirming.
type Snapshot struct {
	State      State
	Variant    ConfirmationVariant
	ContextID  string
	Question   *types.Question
	Prompt     *types.ConfirmationPrompt
	Selections []types.Selection
	Completed  bool
}

// Hooks are the host's callbacks. All hooks are optional. Hooks are invoked
// without the controller lock held.
type Hooks struct {
	// OnFlowComplete fires exactly once, when the server signals there is no
	// next context.
	OnFlowComplete func()
	// OnConfirmationDismissed fires when the user declines a pre-submit
	// confirmation and returns to the question.
	OnConfirmationDismissed func()
	// OnError receives fetch/submit failures. Cancellations never reach it.
	OnError func(error)
}
