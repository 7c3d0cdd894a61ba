package action

import (
	"context"
	"encoding/json"
	"fmt"

	"lifelog/internal/media"
	"lifelog/internal/models"
)

// FoodJSON is the FOOD_ESTIMATE payload.
type FoodJSON struct {
	MealDescription string  `json:"mealDescription"`
	Calories        float64 `json:"calories"`
	Fat             float64 `json:"fat"`
	Carbs           float64 `json:"carbs"`
	Protein         float64 `json:"protein"`
	Notes           string  `json:"notes"`
}

// TodoCreateJSON is the TODO_CREATE payload.
type TodoCreateJSON struct {
	Todo               string  `json:"todo"`
	RecommendedDueDate *string `json:"recommendedDueDate" jsonschema:"nullable"`
}

// TodoCompleteJSON is the TODO_COMPLETE payload. A nil TodoKey means no
// pending todo matched.
type TodoCompleteJSON struct {
	TodoKey *string `json:"todoKey" jsonschema:"nullable"`
}

const foodEstimatePrompt = `
The user will share a detailed description of a food or a meal.

You will need to extract the information, and estimate calories and nutrients.
`

const todoCreatePrompt = `
The user will share a detailed description of an activity, or todo, or reminder.

You will need to extract the information and create a todo for them.
`

const todoCompletePrompt = `
The user will share a description of something they just did, such as an activity, a todo or a reminder.

Please select one of the following pending todos:
%s

If none of the entries match, return null for the todoKey instead.
`

func staticPrompt(text string) PromptFunc {
	return func(context.Context, *media.Service, models.Media) (string, error) {
		return text, nil
	}
}

func foodEstimate() Definition {
	return define[FoodJSON](models.ActionFoodEstimate, staticPrompt(foodEstimatePrompt), nil)
}

func todoCreate() Definition {
	return define(models.ActionTodoCreate, staticPrompt(todoCreatePrompt),
		func(ctx context.Context, svc *media.Service, key string, m models.Media, payload *TodoCreateJSON) error {
			now := svc.Now()
			// The recommended due date stays in the action result only.
			_, err := svc.Todos.Put(ctx, key, models.Todo{
				Key:         key,
				MediaKey:    m.Key,
				Description: payload.Todo,
				Done:        false,
				Due:         nil,
				Datetime:    now,
				Created:     now,
			})
			return err
		})
}

func todoComplete() Definition {
	return define(models.ActionTodoComplete, pendingTodosPrompt,
		func(ctx context.Context, svc *media.Service, _ string, _ models.Media, payload *TodoCompleteJSON) error {
			if payload.TodoKey == nil {
				return nil
			}
			todoKey := *payload.TodoKey
			todo, ok, err := svc.Todos.Get(ctx, todoKey)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %q", ErrTodoNotFound, todoKey)
			}
			todo.Done = true
			_, err = svc.Todos.Put(ctx, todoKey, todo)
			return err
		})
}

func pendingTodosPrompt(ctx context.Context, svc *media.Service, _ models.Media) (string, error) {
	pending, err := svc.PendingTodos(ctx)
	if err != nil {
		return "", err
	}
	descriptions := make(map[string]string, len(pending))
	for _, todo := range pending {
		descriptions[todo.Key] = todo.Description
	}
	listing, err := json.MarshalIndent(descriptions, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(todoCompletePrompt, listing), nil
}
