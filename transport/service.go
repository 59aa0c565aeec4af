package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cobaltplatform/screeningflow/types"
)

// ScreeningService is everything the flow engine needs from the remote
// screening/assessment service. The server owns all linkage between question
// contexts and all branching decisions.
type ScreeningService interface {
	// QuestionContext fetches the question at one position of a flow.
	QuestionContext(ctx context.Context, contextID string) (*types.QuestionContext, error)

	// SubmitAnswers commits selections for a context. It returns a
	// *ConfirmationRequiredError when the server asks for confirmation before
	// accepting; resubmitting with force bypasses that check.
	SubmitAnswers(ctx context.Context, contextID string, selections []types.Selection, force bool) (*types.SubmitResult, error)
}

const contextCacheNamespace = "screening:context"

// ScreeningAPI implements ScreeningService over a Client. Fetched contexts
// are cached by id: answer options are immutable once issued, so a cached
// context stays valid until the next submission, which may change linkage and
// previously-answered flags anywhere in the flow.
type ScreeningAPI struct {
	client *Client
	cache  Keyed[*types.QuestionContext]
	logger *slog.Logger
}

func NewScreeningAPI(client *Client) *ScreeningAPI {
	return &ScreeningAPI{
		client: client,
		cache:  NewKeyed[*types.QuestionContext](NewMemoryCache[*types.QuestionContext](), contextCacheNamespace),
		logger: client.logger,
	}
}

func (a *ScreeningAPI) QuestionContext(ctx context.Context, contextID string) (*types.QuestionContext, error) {
	if cached, ok, err := a.cache.Get(ctx, contextID); err == nil && ok {
		a.logger.Debug("question context cache hit", "contextId", contextID)
		return cached, nil
	}
	var qc types.QuestionContext
	if err := a.client.Get(ctx, "/screening-question-contexts/"+contextID, nil, &qc); err != nil {
		return nil, fmt.Errorf("fetch question context %s: %w", contextID, err)
	}
	_ = a.cache.Set(ctx, contextID, &qc)
	return &qc, nil
}

type submitAnswersRequest struct {
	QuestionContextID string            `json:"screeningQuestionContextId"`
	Answers           []types.Selection `json:"answers"`
	Force             bool              `json:"force,omitempty"`
}

func (a *ScreeningAPI) SubmitAnswers(ctx context.Context, contextID string, selections []types.Selection, force bool) (*types.SubmitResult, error) {
	if selections == nil {
		selections = []types.Selection{}
	}
	req := submitAnswersRequest{
		QuestionContextID: contextID,
		Answers:           selections,
		Force:             force,
	}
	var res types.SubmitResult
	if err := a.client.Post(ctx, "/screening-answers", req, &res); err != nil {
		return nil, err
	}
	// Submission rewrites linkage server-side; every cached context is stale.
	_ = a.cache.Flush(ctx)
	return &res, nil
}

var _ ScreeningService = (*ScreeningAPI)(nil)
