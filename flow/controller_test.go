package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cobaltplatform/screeningflow/transport"
	"github.com/cobaltplatform/screeningflow/types"
)

type submitCall struct {
	contextID string
	answers   []types.Selection
	force     bool
}

// scriptedService is an in-process ScreeningService with scripted linkage,
// scripted confirmation prompts, and gates for exercising in-flight behavior.
type scriptedService struct {
	mu       sync.Mutex
	contexts map[string]*types.QuestionContext
	next     map[string]string
	confirm  map[string]*types.ConfirmationPrompt
	fetchErr map[string]error

	fetchGate    map[string]chan struct{}
	fetchStarted chan struct{}

	submitGate    chan struct{}
	submitStarted chan struct{}

	fetches []string
	submits []submitCall
}

func newScriptedService() *scriptedService {
	return &scriptedService{
		contexts:  map[string]*types.QuestionContext{},
		next:      map[string]string{},
		confirm:   map[string]*types.ConfirmationPrompt{},
		fetchErr:  map[string]error{},
		fetchGate: map[string]chan struct{}{},
	}
}

func (s *scriptedService) addRadio(contextID, previousContextID string) *types.QuestionContext {
	qc := &types.QuestionContext{
		ContextID:         contextID,
		PreviousContextID: previousContextID,
		Question: types.Question{
			QuestionID:         "q-" + contextID,
			QuestionText:       "How often?",
			Type:               types.QuestionTypeRadio,
			MinimumAnswerCount: 1,
			AnswerOptions: []types.AnswerOption{
				{AnswerID: "yes", Text: "Yes"},
				{AnswerID: "no", Text: "No"},
			},
		},
	}
	s.contexts[contextID] = qc
	return qc
}

func (s *scriptedService) QuestionContext(ctx context.Context, contextID string) (*types.QuestionContext, error) {
	s.mu.Lock()
	s.fetches = append(s.fetches, contextID)
	gate := s.fetchGate[contextID]
	started := s.fetchStarted
	scriptedErr := s.fetchErr[contextID]
	s.mu.Unlock()

	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if scriptedErr != nil {
		return nil, scriptedErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	qc, ok := s.contexts[contextID]
	if !ok {
		return nil, &transport.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: "unknown context"}
	}
	clone := *qc
	return &clone, nil
}

func (s *scriptedService) SubmitAnswers(ctx context.Context, contextID string, selections []types.Selection, force bool) (*types.SubmitResult, error) {
	s.mu.Lock()
	s.submits = append(s.submits, submitCall{contextID: contextID, answers: selections, force: force})
	started := s.submitStarted
	gate := s.submitGate
	prompt := s.confirm[contextID]
	next := s.next[contextID]
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if prompt != nil && !force {
		return nil, &transport.ConfirmationRequiredError{Prompt: *prompt}
	}
	return &types.SubmitResult{NextContextID: next}, nil
}

func (s *scriptedService) submitCalls() []submitCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]submitCall, len(s.submits))
	copy(out, s.submits)
	return out
}

func (s *scriptedService) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetches)
}

func TestRadioSelectAndAdvance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q1", "")
	svc.addRadio("Q2", "Q1")
	svc.next["Q1"] = "Q2"

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q1"); err != nil {
		t.Fatalf("load Q1: %v", err)
	}
	if err := c.SelectOption(ctx, "yes"); err != nil {
		t.Fatalf("select: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Selections) != 1 || snap.Selections[0].AnswerID != "yes" {
		t.Fatalf("buffer = %v, want single %q selection", snap.Selections, "yes")
	}

	if err := c.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap = c.Snapshot()
	if snap.State != StateQuestion || snap.ContextID != "Q2" {
		t.Errorf("after submit state=%s context=%s, want question on Q2", snap.State, snap.ContextID)
	}

	calls := svc.submitCalls()
	if len(calls) != 1 || calls[0].contextID != "Q1" || calls[0].force {
		t.Errorf("unexpected submit calls %v", calls)
	}
}

func TestPreQuestionConfirmationGatesQuestion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	qc := svc.addRadio("Q5", "Q4")
	qc.Prompt = &types.ConfirmationPrompt{Title: "Before you begin", ActionText: "I understand"}

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q5"); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateConfirming || snap.Variant != ConfirmPreQuestion {
		t.Fatalf("state=%s variant=%s, want confirming/pre_question", snap.State, snap.Variant)
	}
	if snap.Prompt == nil || snap.Prompt.Title != "Before you begin" {
		t.Fatalf("prompt = %v, want the pre-question prompt", snap.Prompt)
	}

	if err := c.AcceptConfirmation(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if snap = c.Snapshot(); snap.State != StateQuestion {
		t.Errorf("after accept state=%s, want question", snap.State)
	}
}

func TestPreQuestionConfirmationSkippedWhenPreviouslyAnswered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	qc := svc.addRadio("Q5", "Q4")
	qc.Prompt = &types.ConfirmationPrompt{Title: "Before you begin", ActionText: "I understand"}
	qc.PreviouslyAnswered = true
	qc.SelectedAnswers = []types.Selection{{AnswerID: "no"}}

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q5"); err != nil {
		t.Fatalf("load: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateQuestion {
		t.Errorf("state=%s, want question for an answered context", snap.State)
	}
	if len(snap.Selections) != 1 || snap.Selections[0].AnswerID != "no" {
		t.Errorf("buffer = %v, want seeded previous answer", snap.Selections)
	}
}

func TestPreSubmitConfirmationAcceptAndDecline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q9", "")
	svc.confirm["Q9"] = &types.ConfirmationPrompt{Title: "Are you sure?", ActionText: "Submit"}
	svc.next["Q9"] = ""

	dismissed := 0
	c := NewController(svc, Hooks{OnConfirmationDismissed: func() { dismissed++ }}, nil)
	if err := c.LoadContext(ctx, "Q9"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.SelectOption(ctx, "yes"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateConfirming || snap.Variant != ConfirmPreSubmit {
		t.Fatalf("state=%s variant=%s, want confirming/pre_submit", snap.State, snap.Variant)
	}
	if snap.Prompt == nil || snap.Prompt.Title != "Are you sure?" {
		t.Fatalf("prompt = %v, want the server's prompt", snap.Prompt)
	}

	// Decline: back to the question, buffer intact, no resubmission.
	c.DismissConfirmation()
	snap = c.Snapshot()
	if snap.State != StateQuestion {
		t.Fatalf("after decline state=%s, want question", snap.State)
	}
	if len(snap.Selections) != 1 || snap.Selections[0].AnswerID != "yes" {
		t.Fatalf("after decline buffer = %v, want original selection", snap.Selections)
	}
	if dismissed != 1 {
		t.Errorf("dismissed hook fired %d times, want 1", dismissed)
	}
	if calls := svc.submitCalls(); len(calls) != 1 {
		t.Fatalf("decline must not resubmit, got %d calls", len(calls))
	}

	// Accept: resubmits with force and advances past the soft stop.
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if err := c.AcceptConfirmation(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
	calls := svc.submitCalls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 submit calls, got %d", len(calls))
	}
	if !calls[2].force {
		t.Error("accepted confirmation must resubmit with force")
	}
	if calls[2].contextID != "Q9" {
		t.Errorf("forced resubmit went to %s, want Q9", calls[2].contextID)
	}
}

func TestFlowCompleteFiresExactlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("QLast", "")
	svc.next["QLast"] = ""

	completions := 0
	c := NewController(svc, Hooks{OnFlowComplete: func() { completions++ }}, nil)
	if err := c.LoadContext(ctx, "QLast"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.SelectOption(ctx, "yes"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// A stray second submit after completion must not re-fire the hook.
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("post-completion submit: %v", err)
	}

	if completions != 1 {
		t.Errorf("OnFlowComplete fired %d times, want 1", completions)
	}
	if !c.Snapshot().Completed {
		t.Error("snapshot should report completion")
	}
	if calls := svc.submitCalls(); len(calls) != 1 {
		t.Errorf("expected 1 submit call, got %d", len(calls))
	}
}

func TestPreviousIsNoOpAtFlowStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q1", "")

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := svc.fetchCount()

	if err := c.Previous(ctx); err != nil {
		t.Fatalf("previous: %v", err)
	}
	snap := c.Snapshot()
	if snap.State != StateQuestion || snap.ContextID != "Q1" {
		t.Errorf("previous changed state to %s/%s", snap.State, snap.ContextID)
	}
	if svc.fetchCount() != before {
		t.Error("previous must not fetch when there is nowhere to go")
	}
}

func TestPreviousReplaysPreQuestionPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	qc := svc.addRadio("Q5", "Q4")
	qc.Prompt = &types.ConfirmationPrompt{Title: "Heads up", ActionText: "OK"}
	svc.addRadio("Q4", "")

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q5"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.AcceptConfirmation(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// From the question, Previous re-shows the prompt without navigating.
	if err := c.Previous(ctx); err != nil {
		t.Fatalf("previous: %v", err)
	}
	snap := c.Snapshot()
	if snap.State != StateConfirming || snap.Variant != ConfirmPreQuestion || snap.ContextID != "Q5" {
		t.Fatalf("state=%s variant=%s context=%s, want prompt replay on Q5", snap.State, snap.Variant, snap.ContextID)
	}

	// From the replayed prompt, Previous navigates to the prior context.
	if err := c.Previous(ctx); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if snap = c.Snapshot(); snap.ContextID != "Q4" {
		t.Errorf("context = %s, want Q4", snap.ContextID)
	}
}

func TestPreviousDismissesPreSubmitPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q9", "Q8")
	svc.confirm["Q9"] = &types.ConfirmationPrompt{Title: "Sure?", ActionText: "Yes"}

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q9"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.SelectOption(ctx, "yes"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := c.Previous(ctx); err != nil {
		t.Fatalf("previous: %v", err)
	}
	snap := c.Snapshot()
	if snap.State != StateQuestion || snap.ContextID != "Q9" {
		t.Errorf("state=%s context=%s, want question on Q9 (no navigation)", snap.State, snap.ContextID)
	}
}

func TestQuadClickSubmitsExactlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.contexts["QD"] = &types.QuestionContext{
		ContextID: "QD",
		Question: types.Question{
			QuestionID:         "q-qd",
			QuestionText:       "Ready?",
			Type:               types.QuestionTypeQuad,
			MinimumAnswerCount: 1,
			AnswerOptions: []types.AnswerOption{
				{AnswerID: "go", Text: "Yes"},
				{AnswerID: "stop", Text: "No"},
			},
		},
	}
	svc.addRadio("QNext", "QD")
	svc.next["QD"] = "QNext"
	svc.submitStarted = make(chan struct{})
	svc.submitGate = make(chan struct{})

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "QD"); err != nil {
		t.Fatalf("load: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.SelectOption(ctx, "go")
	}()
	<-svc.submitStarted

	// A second tap while the submission is in flight is absorbed.
	if err := c.SelectOption(ctx, "go"); err != nil {
		t.Fatalf("second click: %v", err)
	}
	close(svc.submitGate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first click: %v", err)
	}

	if calls := svc.submitCalls(); len(calls) != 1 {
		t.Fatalf("quad click produced %d submissions, want 1", len(calls))
	}
	if snap := c.Snapshot(); snap.ContextID != "QNext" {
		t.Errorf("context = %s, want QNext", snap.ContextID)
	}
}

func TestStaleLoadDoesNotOverwriteNewerContext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("slow", "")
	svc.addRadio("fast", "")
	gate := make(chan struct{})
	svc.fetchGate["slow"] = gate
	svc.fetchStarted = make(chan struct{}, 1)

	c := NewController(svc, Hooks{}, nil)
	slowDone := make(chan error, 1)
	go func() {
		slowDone <- c.LoadContext(ctx, "slow")
	}()
	<-svc.fetchStarted

	if err := c.LoadContext(ctx, "fast"); err != nil {
		t.Fatalf("load fast: %v", err)
	}
	close(gate)
	if err := <-slowDone; err != nil {
		t.Fatalf("superseded load should be silent, got %v", err)
	}

	if snap := c.Snapshot(); snap.ContextID != "fast" {
		t.Errorf("context = %s, want fast to win over the stale load", snap.ContextID)
	}
}

func TestSubmitGateEnforcesMinimum(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q1", "")

	c := NewController(svc, Hooks{}, nil)
	if err := c.LoadContext(ctx, "Q1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.CanSubmit() {
		t.Error("CanSubmit should be false below the minimum")
	}
	if err := c.Submit(ctx); !errors.Is(err, ErrTooFewSelections) {
		t.Fatalf("submit err = %v, want ErrTooFewSelections", err)
	}
	if len(svc.submitCalls()) != 0 {
		t.Fatal("under-minimum submit must not reach the service")
	}

	if err := c.SelectOption(ctx, "yes"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !c.CanSubmit() {
		t.Error("CanSubmit should be true at the minimum")
	}
}

func TestFetchFailureKeepsLastGoodState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q1", "")
	svc.fetchErr["broken"] = &transport.APIError{StatusCode: 500, Code: "INTERNAL", Message: "boom"}

	var reported []error
	c := NewController(svc, Hooks{OnError: func(err error) { reported = append(reported, err) }}, nil)
	if err := c.LoadContext(ctx, "Q1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.SelectOption(ctx, "yes"); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := c.LoadContext(ctx, "broken"); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(reported) != 1 {
		t.Fatalf("OnError fired %d times, want 1", len(reported))
	}

	snap := c.Snapshot()
	if snap.State != StateQuestion || snap.ContextID != "Q1" {
		t.Errorf("state=%s context=%s, want last-known-good Q1", snap.State, snap.ContextID)
	}
	if len(snap.Selections) != 1 {
		t.Errorf("buffer = %v, want input preserved for retry", snap.Selections)
	}
}

func TestAbortedFetchIsSilent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("Q1", "")
	svc.fetchErr["gone"] = context.Canceled

	var reported []error
	c := NewController(svc, Hooks{OnError: func(err error) { reported = append(reported, err) }}, nil)
	if err := c.LoadContext(ctx, "Q1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := c.LoadContext(ctx, "gone"); err != nil {
		t.Fatalf("aborted fetch should return nil, got %v", err)
	}
	if len(reported) != 0 {
		t.Errorf("cancellation must not be reported, got %v", reported)
	}
}

func TestCloseAbortsOutstandingLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newScriptedService()
	svc.addRadio("slow", "")
	svc.fetchGate["slow"] = make(chan struct{})
	svc.fetchStarted = make(chan struct{}, 1)

	c := NewController(svc, Hooks{}, nil)
	done := make(chan error, 1)
	go func() {
		done <- c.LoadContext(ctx, "slow")
	}()
	<-svc.fetchStarted

	c.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("close should silence the aborted load, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load did not return after Close")
	}
}
