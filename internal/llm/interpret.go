package llm

import (
	"context"
	"fmt"

	"lifelog/internal/models"
)

// IdentifyActionResponse is the model's routing decision for one interpretation.
type IdentifyActionResponse struct {
	Actions []models.ActionType `json:"actions" jsonschema:"enum=FOOD_ESTIMATE,enum=TODO_CREATE,enum=TODO_COMPLETE,enum=DATAPOINT" validate:"dive,oneof=FOOD_ESTIMATE TODO_CREATE TODO_COMPLETE DATAPOINT"`
	Memory  *string             `json:"memory" jsonschema:"nullable"`
	Query   *string             `json:"query" jsonschema:"nullable"`
}

const identifyActionsPrompt = `
The user will share some content in the form of text. Your task is to:

1. Match the text content against a series of actions, which I will share with you. You can return multiple actions if they are relevant enough.
2. Let me know if the text is "memorable", something that is very important for the user and their life that should be remembered (and not only just logged. All entries will be logged).
3. You might be later asked to take the action that you identified in step 1. In that case, let me know what information might be useful to share with you (e.g. Past info stored as part of step 2).

The actions are:
* FOOD_ESTIMATE: estimate calories and nutrients.
* TODO_CREATE: create a todo.
* TODO_COMPLETE: mark a todo as done. Match this one if it seems the user completed an action. The application will figure out if a matching todo exists.
* DATAPOINT: add a generic "data point" (e.g. "Type, blood pressure. Value 120/80").
`

// IdentifyActionsPrompt returns the fixed system prompt used for routing.
func IdentifyActionsPrompt() string {
	return identifyActionsPrompt
}

// Interpretation turns media into text: text payloads verbatim, images
// described, audio transcribed.
func Interpretation(ctx context.Context, gw Gateway, media models.Media) (string, error) {
	switch media.Category {
	case models.CategoryText:
		return string(media.Payload), nil
	case models.CategoryImage:
		return gw.DescribeImage(ctx, media)
	case models.CategoryAudio:
		return gw.DescribeAudio(ctx, media)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCategory, media.Category)
	}
}

// IdentifyActions asks the model which actions apply to interpretation.
func IdentifyActions(ctx context.Context, gw Gateway, interpretation string) (IdentifyActionResponse, error) {
	var resp IdentifyActionResponse
	if err := gw.QueryStructured(ctx, identifyActionsPrompt, interpretation, &resp); err != nil {
		return IdentifyActionResponse{}, err
	}
	if resp.Actions == nil {
		resp.Actions = []models.ActionType{}
	}
	return resp, nil
}
