package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cobaltplatform/screeningflow/transport"
	"github.com/cobaltplatform/screeningflow/types"
)

var (
	// ErrSubmissionInFlight is returned when a submit is attempted while a
	// prior submission for the current context is still unresolved.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrTooFewSelections is returned when the buffer holds fewer selections
	// than the question's minimum required count.
	ErrTooFewSelections = errors.New("fewer selections than the question requires")
)

// Controller walks a server-defined question flow: it owns the current
// question context and answer buffer, fetches contexts by id, commits answers,
// and manages the confirmation interstitials that gate progress. The server
// is the sole source of truth for linkage and termination; the controller only
// tracks which context it is looking at.
type Controller struct {
	service transport.ScreeningService
	hooks   Hooks
	logger  *slog.Logger

	mu            sync.Mutex
	state         State
	variant       ConfirmationVariant
	stableState   State
	stableVariant ConfirmationVariant
	prompt        *types.ConfirmationPrompt
	current       *types.QuestionContext
	buffer        AnswerBuffer
	completed     bool
	submitting    bool
	loadSeq       int
	cancelLoad    context.CancelFunc
}

func NewController(service transport.ScreeningService, hooks Hooks, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		service:     service,
		hooks:       hooks,
		logger:      logger,
		state:       StateLoading,
		stableState: StateLoading,
	}
}

// Snapshot returns the current render state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:      c.state,
		Variant:    c.variant,
		Selections: c.buffer.Selections(),
		Completed:  c.completed,
	}
	if c.current != nil {
		snap.ContextID = c.current.ContextID
		q := c.current.Question
		snap.Question = &q
	}
	if c.state == StateConfirming {
		snap.Prompt = c.prompt
	}
	return snap
}

// LoadContext fetches the question context with the given id and enters
// question mode, or confirmation mode when the context carries a pre-question
// prompt and was not previously answered. A newer LoadContext supersedes any
// in-flight one: the stale fetch is aborted and its late response discarded.
func (c *Controller) LoadContext(ctx context.Context, contextID string) error {
	c.mu.Lock()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel
	c.loadSeq++
	seq := c.loadSeq
	c.state, c.variant = StateLoading, ""
	c.mu.Unlock()

	c.logger.Debug("loading question context", "contextId", contextID)
	qc, err := c.service.QuestionContext(loadCtx, contextID)

	c.mu.Lock()
	if seq != c.loadSeq {
		// Superseded by a newer load; the late result must not win.
		c.mu.Unlock()
		return nil
	}
	c.cancelLoad = nil
	cancel()
	if err != nil {
		c.state, c.variant = c.stableState, c.stableVariant
		c.mu.Unlock()
		if transport.IsCancellation(err) {
			c.logger.Debug("question context fetch aborted", "contextId", contextID)
			return nil
		}
		c.report(err)
		return err
	}
	c.current = qc
	c.buffer.Replace(qc.SelectedAnswers)
	if qc.Prompt != nil && !qc.PreviouslyAnswered {
		c.setState(StateConfirming, ConfirmPreQuestion)
		c.prompt = qc.Prompt
	} else {
		c.setState(StateQuestion, "")
		c.prompt = nil
	}
	c.mu.Unlock()
	return nil
}

// setState records a stable (non-loading) display state. Callers hold c.mu.
func (c *Controller) setState(state State, variant ConfirmationVariant) {
	c.state, c.variant = state, variant
	c.stableState, c.stableVariant = state, variant
}

// Previous steps backward. If the current context has a pre-question prompt
// and a question is showing, the prompt is shown again instead of navigating.
// If a pre-submit confirmation is showing, it is simply dismissed. Otherwise
// the previous context is loaded when one exists; with nowhere to go this is
// a no-op.
func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConfirming && c.variant == ConfirmPreSubmit {
		c.setState(StateQuestion, "")
		c.prompt = nil
		c.mu.Unlock()
		return nil
	}
	if c.state == StateQuestion && c.current != nil && c.current.Prompt != nil {
		c.setState(StateConfirming, ConfirmPreQuestion)
		c.prompt = c.current.Prompt
		c.mu.Unlock()
		return nil
	}
	if c.current == nil || c.current.PreviousContextID == "" {
		c.mu.Unlock()
		return nil
	}
	prev := c.current.PreviousContextID
	c.mu.Unlock()
	return c.LoadContext(ctx, prev)
}

// AcceptConfirmation acts on the showing prompt: a pre-question prompt gives
// way to its question, a pre-submit prompt re-submits with force set so the
// server bypasses whatever condition produced it.
func (c *Controller) AcceptConfirmation(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateConfirming {
		c.mu.Unlock()
		return nil
	}
	if c.variant == ConfirmPreQuestion {
		c.setState(StateQuestion, "")
		c.prompt = nil
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.submit(ctx, true)
}

// DismissConfirmation declines a pre-submit prompt and returns to the
// question with the buffer untouched. Pre-question prompts have no decline
// path; use Previous to navigate away from them.
func (c *Controller) DismissConfirmation() {
	c.mu.Lock()
	if c.state != StateConfirming || c.variant != ConfirmPreSubmit {
		c.mu.Unlock()
		return
	}
	c.setState(StateQuestion, "")
	c.prompt = nil
	c.mu.Unlock()
	if c.hooks.OnConfirmationDismissed != nil {
		c.hooks.OnConfirmationDismissed()
	}
}

// SelectOption applies one option click with the current question's edit
// semantics: replace for single-select kinds, toggle for checkbox groups.
// Quad screens submit on the same click; a click that lands while that
// submission is still in flight is absorbed, so one user action produces at
// most one submission.
func (c *Controller) SelectOption(ctx context.Context, answerID string) error {
	c.mu.Lock()
	if c.state != StateQuestion || c.current == nil {
		c.mu.Unlock()
		return nil
	}
	kind := c.current.Question.Type
	switch {
	case kind.SingleSelect():
		c.buffer.Select(answerID)
	case kind == types.QuestionTypeCheckbox:
		c.buffer.Toggle(answerID)
	default:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !kind.AutoSubmit() {
		return nil
	}
	err := c.submit(ctx, false)
	if errors.Is(err, ErrSubmissionInFlight) {
		return nil
	}
	return err
}

// SetText edits the free-text value for one option of the current question.
func (c *Controller) SetText(answerID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateQuestion {
		return
	}
	c.buffer.SetText(answerID, text)
}

// SetDate edits the date value for one option of the current question.
func (c *Controller) SetDate(answerID string, day time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateQuestion {
		return
	}
	c.buffer.SetDate(answerID, day)
}

// CanSubmit reports whether the submit affordance should be enabled.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateQuestion &&
		!c.submitting &&
		c.current != nil &&
		c.buffer.CanSubmit(c.current.Question.MinimumAnswerCount)
}

// Submit commits the answer buffer for the current context. On success the
// controller advances to the next context, or signals flow completion when
// the server returns none. A confirmation-required response switches to the
// pre-submit prompt without clearing the buffer.
func (c *Controller) Submit(ctx context.Context) error {
	return c.submit(ctx, false)
}

func (c *Controller) submit(ctx context.Context, force bool) error {
	c.mu.Lock()
	if c.current == nil || c.completed {
		c.mu.Unlock()
		return nil
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if !c.buffer.CanSubmit(c.current.Question.MinimumAnswerCount) {
		c.mu.Unlock()
		return ErrTooFewSelections
	}
	c.submitting = true
	contextID := c.current.ContextID
	answers := c.buffer.Selections()
	c.mu.Unlock()

	c.logger.Debug("submitting answers", "contextId", contextID, "count", len(answers), "force", force)
	result, err := c.service.SubmitAnswers(ctx, contextID, answers, force)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		var confirm *transport.ConfirmationRequiredError
		if errors.As(err, &confirm) {
			c.setState(StateConfirming, ConfirmPreSubmit)
			c.prompt = &confirm.Prompt
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		if transport.IsCancellation(err) {
			return nil
		}
		c.report(err)
		return err
	}
	c.mu.Unlock()
	return c.advance(ctx, result.NextContextID)
}

// advance moves to the next context, or signals completion when the server
// returned none.
func (c *Controller) advance(ctx context.Context, nextContextID string) error {
	if nextContextID != "" {
		return c.LoadContext(ctx, nextContextID)
	}
	c.mu.Lock()
	already := c.completed
	c.completed = true
	c.mu.Unlock()
	if !already {
		c.logger.Debug("flow complete")
		if c.hooks.OnFlowComplete != nil {
			c.hooks.OnFlowComplete()
		}
	}
	return nil
}

// Close aborts any outstanding fetch. Hosts call it on unmount.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel := c.cancelLoad
	c.cancelLoad = nil
	c.loadSeq++
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) report(err error) {
	c.logger.Error("screening flow error", "error", err)
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}
