package types

// QuestionType selects the input control for a question and the edit
// semantics of its answer buffer.
type QuestionType string

const (
	QuestionTypeDropdown QuestionType = "DROPDOWN"
	QuestionTypeCheckbox QuestionType = "CHECKBOX"
	QuestionTypeRadio    QuestionType = "RADIO"
	QuestionTypeQuad     QuestionType = "QUAD"
	QuestionTypeText     QuestionType = "TEXT"
	QuestionTypeDate     QuestionType = "DATE"
)

// SingleSelect reports whether selecting an option replaces the whole
// answer set rather than toggling membership.
func (t QuestionType) SingleSelect() bool {
	switch t {
	case QuestionTypeDropdown, QuestionTypeRadio, QuestionTypeQuad:
		return true
	}
	return false
}

// AutoSubmit reports whether selecting an option also commits the answer,
// with no separate submit action. Quad screens are binary/quad decision
// points and submit on tap.
func (t QuestionType) AutoSubmit() bool {
	return t == QuestionTypeQuad
}

type AnswerOption struct {
	AnswerID string `json:"answerId"`
	Text     string `json:"answerText"`
}

// Selection is one chosen option for the current question. Text carries the
// free-text or normalized date value for TEXT/DATE questions.
type Selection struct {
	AnswerID string `json:"answerId"`
	Text     string `json:"answerText,omitempty"`
}

type Question struct {
	QuestionID         string         `json:"questionId"`
	IntroText          string         `json:"introText,omitempty"`
	QuestionText       string         `json:"questionText"`
	FooterText         string         `json:"footerText,omitempty"`
	Type               QuestionType   `json:"questionType"`
	MinimumAnswerCount int            `json:"minimumAnswerCount"`
	AnswerOptions      []AnswerOption `json:"answerOptions"`
}

// Option returns the answer option with the given id.
func (q Question) Option(answerID string) (AnswerOption, bool) {
	for _, opt := range q.AnswerOptions {
		if opt.AnswerID == answerID {
			return opt, true
		}
	}
	return AnswerOption{}, false
}

// Skippable reports whether the question may be submitted with no answers.
func (q Question) Skippable() bool {
	return q.MinimumAnswerCount == 0
}

// ConfirmationPrompt is an interstitial screen gating forward progress. It is
// not a question and carries no answer options.
type ConfirmationPrompt struct {
	Title      string `json:"titleText"`
	Body       string `json:"bodyText,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	ActionText string `json:"actionText"`
}

// QuestionContext is the server-issued handle for one question at one
// position of an in-progress flow. Linkage between contexts is owned by the
// server; NextContextID is only learned from a submission result.
type QuestionContext struct {
	ContextID          string              `json:"questionContextId"`
	Question           Question            `json:"question"`
	PreviousContextID  string              `json:"previousQuestionContextId,omitempty"`
	SelectedAnswers    []Selection         `json:"selectedAnswers,omitempty"`
	PreviouslyAnswered bool                `json:"previouslyAnswered"`
	Prompt             *ConfirmationPrompt `json:"confirmationPrompt,omitempty"`
}

// SubmitResult is the success shape of an answer submission. An empty
// NextContextID means the flow is complete.
type SubmitResult struct {
	NextContextID string `json:"nextQuestionContextId,omitempty"`
}
