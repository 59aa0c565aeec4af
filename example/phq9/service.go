package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/cobaltplatform/screeningflow/transport"
	"github.com/cobaltplatform/screeningflow/types"
)

// demoService is a canned in-process screening flow: an intro quad screen, a
// consent interstitial ahead of the first symptom question, two PHQ-2 style
// questions, and a wrap-up free-text question. Submitting the final question
// without any text triggers a pre-submit confirmation, the way the real
// service soft-stops on suspicious submissions.
type demoService struct {
	mu       sync.Mutex
	answers  map[string][]types.Selection
	sequence []string
	contexts map[string]*types.QuestionContext
}

const demoEntryContextID = "intro"

func frequencyOptions(prefix string) []types.AnswerOption {
	labels := []string{"Not at all", "Several days", "More than half the days", "Nearly every day"}
	opts := make([]types.AnswerOption, len(labels))
	for i, label := range labels {
		opts[i] = types.AnswerOption{AnswerID: fmt.Sprintf("%s-%d", prefix, i), Text: label}
	}
	return opts
}

func newDemoService() *demoService {
	s := &demoService{
		answers:  map[string][]types.Selection{},
		sequence: []string{"intro", "phq1", "phq2", "notes"},
	}
	s.contexts = map[string]*types.QuestionContext{
		"intro": {
			ContextID: "intro",
			Question: types.Question{
				QuestionID:         "q-intro",
				QuestionText:       "Would you like to check in on how you have been feeling?",
				Type:               types.QuestionTypeQuad,
				MinimumAnswerCount: 1,
				AnswerOptions: []types.AnswerOption{
					{AnswerID: "intro-yes", Text: "Yes, let's get started"},
					{AnswerID: "intro-no", Text: "Not right now"},
				},
			},
		},
		"phq1": {
			ContextID: "phq1",
			Question: types.Question{
				QuestionID:         "q-phq1",
				IntroText:          "Over the last 2 weeks, how often have you been bothered by the following?",
				QuestionText:       "Little interest or pleasure in doing things",
				Type:               types.QuestionTypeRadio,
				MinimumAnswerCount: 1,
				AnswerOptions:      frequencyOptions("phq1"),
			},
			Prompt: &types.ConfirmationPrompt{
				Title:      "Before you begin",
				Body:       "Your answers are shared with your care team and help them find the right support for you. There are no right or wrong answers.",
				ActionText: "I understand",
			},
		},
		"phq2": {
			ContextID: "phq2",
			Question: types.Question{
				QuestionID:         "q-phq2",
				IntroText:          "Over the last 2 weeks, how often have you been bothered by the following?",
				QuestionText:       "Feeling down, depressed, or hopeless",
				Type:               types.QuestionTypeRadio,
				MinimumAnswerCount: 1,
				AnswerOptions:      frequencyOptions("phq2"),
			},
		},
		"notes": {
			ContextID: "notes",
			Question: types.Question{
				QuestionID:   "q-notes",
				QuestionText: "Anything else you would like your care team to know?",
				FooterText:   "You can leave this blank.",
				Type:         types.QuestionTypeText,
				AnswerOptions: []types.AnswerOption{
					{AnswerID: "notes-text", Text: "Notes"},
				},
			},
		},
	}
	for i, id := range s.sequence {
		if i > 0 {
			s.contexts[id].PreviousContextID = s.sequence[i-1]
		}
	}
	return s
}

func (s *demoService) QuestionContext(ctx context.Context, contextID string) (*types.QuestionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.contexts[contextID]
	if !ok {
		return nil, &transport.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: "unknown question context"}
	}
	qc := *base
	if answers, answered := s.answers[contextID]; answered {
		qc.PreviouslyAnswered = true
		qc.SelectedAnswers = answers
	}
	return &qc, nil
}

func (s *demoService) SubmitAnswers(ctx context.Context, contextID string, selections []types.Selection, force bool) (*types.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contexts[contextID]; !ok {
		return nil, &transport.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: "unknown question context"}
	}
	if contextID == "notes" && len(selections) == 0 && !force {
		return nil, &transport.ConfirmationRequiredError{
			Prompt: types.ConfirmationPrompt{
				Title:      "Submit without a note?",
				Body:       "You have not written anything for your care team. Submit anyway?",
				ActionText: "Submit",
			},
		}
	}
	s.answers[contextID] = selections

	// Declining the intro screen ends the flow immediately.
	if contextID == "intro" && len(selections) == 1 && selections[0].AnswerID == "intro-no" {
		return &types.SubmitResult{}, nil
	}
	for i, id := range s.sequence {
		if id == contextID && i+1 < len(s.sequence) {
			return &types.SubmitResult{NextContextID: s.sequence[i+1]}, nil
		}
	}
	return &types.SubmitResult{}, nil
}

var _ transport.ScreeningService = (*demoService)(nil)
