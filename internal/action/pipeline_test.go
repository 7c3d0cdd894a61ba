package action

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"lifelog/internal/llm/llmtest"
	"lifelog/internal/media"
	"lifelog/internal/models"
	"lifelog/internal/schema"
	"lifelog/internal/store"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testPipeline(t *testing.T) (*Pipeline, *media.Service) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := media.NewService(st)
	svc.SetClock(func() time.Time { return fixedNow })
	return NewPipeline(svc, nil, nil), svc
}

func textMedia(key, text string) models.Media {
	return models.Media{
		Key:         key,
		Category:    models.CategoryText,
		ContentType: "text/plain",
		Source:      models.SourceTextNote,
		Payload:     []byte(text),
		Datetime:    fixedNow,
		Created:     fixedNow,
	}
}

func putTodos(t *testing.T, svc *media.Service, todos ...models.Todo) {
	t.Helper()
	for _, todo := range todos {
		if _, err := svc.Todos.Put(context.Background(), todo.Key, todo); err != nil {
			t.Fatalf("put todo %s: %v", todo.Key, err)
		}
	}
}

func countAll[T store.Record](t *testing.T, c *store.Crud[T]) int {
	t.Helper()
	all, err := c.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("list %s: %v", c.Collection(), err)
	}
	return len(all)
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	want := []models.ActionType{models.ActionFoodEstimate, models.ActionTodoCreate, models.ActionTodoComplete}
	if got := reg.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, err := reg.Lookup(models.ActionDatapoint); !errors.Is(err, ErrUnknownActionType) {
		t.Fatalf("expected DATAPOINT to be unknown, got %v", err)
	}
	for _, typ := range want {
		def, err := reg.Lookup(typ)
		if err != nil {
			t.Fatalf("lookup %s: %v", typ, err)
		}
		format, err := def.Format()
		if err != nil {
			t.Fatalf("format %s: %v", typ, err)
		}
		if format.Name != string(typ) || len(format.Schema) == 0 {
			t.Fatalf("unexpected format for %s: %+v", typ, format)
		}
	}
}

func TestRegisterRejects(t *testing.T) {
	reg := DefaultRegistry()
	if err := reg.Register(foodEstimate()); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	bogus := Definition{Type: "DANCE", NewPayload: func() any { return new(FoodJSON) }, Prompt: staticPrompt("x")}
	if err := reg.Register(bogus); !errors.Is(err, ErrUnknownActionType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestPerformFoodEstimate(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()
	m := textMedia("m1", "I ate a salad")

	raw := []byte(`{"mealDescription":"green salad","calories":180,"fat":9.5,"carbs":14,"protein":6,"notes":"olive oil dressing"}`)
	result, err := p.PerformAction(ctx, models.ActionFoodEstimate, "r1", m, raw)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if result.MediaKey != "m1" || result.ActionType != models.ActionFoodEstimate {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.Created.Equal(fixedNow) || !result.Datetime.Equal(result.Created) {
		t.Fatalf("expected both timestamps from one instant, got %v %v", result.Created, result.Datetime)
	}

	stored, ok, err := svc.ActionResults.Get(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get result: ok=%v err=%v", ok, err)
	}
	if stored.Value["calories"] != float64(180) || stored.Value["mealDescription"] != "green salad" {
		t.Fatalf("unexpected stored value %v", stored.Value)
	}
	if countAll(t, svc.Todos) != 0 {
		t.Fatal("food estimate must not create todos")
	}
}

func TestPerformValidationFailureWritesNothing(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()

	cases := map[models.ActionType]string{
		models.ActionFoodEstimate: `{"mealDescription":"salad","calories":"lots","fat":1,"carbs":1,"protein":1,"notes":""}`,
		models.ActionTodoCreate:   `{"recommendedDueDate":null}`,
		models.ActionTodoComplete: `{}`,
	}
	for typ, raw := range cases {
		_, err := p.PerformAction(ctx, typ, "r-"+string(typ), textMedia("m", "x"), []byte(raw))
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", typ, err)
		}
	}
	if countAll(t, svc.ActionResults) != 0 || countAll(t, svc.Todos) != 0 {
		t.Fatal("validation failures must not persist anything")
	}
}

func TestPerformUnknownActionType(t *testing.T) {
	p, svc := testPipeline(t)
	_, err := p.PerformAction(context.Background(), models.ActionDatapoint, "r", textMedia("m", "bp 120/80"), []byte(`{}`))
	if !errors.Is(err, ErrUnknownActionType) {
		t.Fatalf("expected ErrUnknownActionType, got %v", err)
	}
	if countAll(t, svc.ActionResults) != 0 {
		t.Fatal("unknown action must not persist a result")
	}
}

func TestPerformTodoCreateIgnoresRecommendedDueDate(t *testing.T) {
	for _, due := range []string{`null`, `"2024-06-02"`, `"tomorrow"`} {
		t.Run(due, func(t *testing.T) {
			p, svc := testPipeline(t)
			ctx := context.Background()

			raw := []byte(`{"todo":"buy milk","recommendedDueDate":` + due + `}`)
			result, err := p.PerformAction(ctx, models.ActionTodoCreate, "t1", textMedia("m1", "buy milk"), raw)
			if err != nil {
				t.Fatalf("perform: %v", err)
			}

			todos, err := svc.Todos.List(ctx, nil)
			if err != nil {
				t.Fatalf("list todos: %v", err)
			}
			if len(todos) != 1 {
				t.Fatalf("expected exactly one todo, got %d", len(todos))
			}
			todo := todos[0]
			if todo.Key != "t1" || todo.MediaKey != "m1" || todo.Description != "buy milk" || todo.Done || todo.Due != nil {
				t.Fatalf("unexpected todo %+v", todo)
			}
			if countAll(t, svc.ActionResults) != 1 {
				t.Fatal("expected exactly one action result")
			}
			wantDue := any(nil)
			if due != "null" {
				wantDue = strings.Trim(due, `"`)
			}
			if result.Value["recommendedDueDate"] != wantDue {
				t.Fatalf("expected recommendation %v in result, got %v", wantDue, result.Value["recommendedDueDate"])
			}
		})
	}
}

func TestPerformTodoComplete(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()
	created := fixedNow.Add(-time.Hour)
	a := models.Todo{Key: "a", MediaKey: "ma", Description: "buy milk", Datetime: created, Created: created}
	b := models.Todo{Key: "b", MediaKey: "mb", Description: "call mom", Datetime: created, Created: created.Add(time.Minute)}
	putTodos(t, svc, a, b)

	if _, err := p.PerformAction(ctx, models.ActionTodoComplete, "r1", textMedia("m", "bought milk"), []byte(`{"todoKey":"a"}`)); err != nil {
		t.Fatalf("perform: %v", err)
	}

	gotA, _, err := svc.Todos.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	wantA := a
	wantA.Done = true
	if !reflect.DeepEqual(gotA, wantA) {
		t.Fatalf("expected only done flipped:\nwant %+v\ngot  %+v", wantA, gotA)
	}
	gotB, _, err := svc.Todos.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if !reflect.DeepEqual(gotB, b) {
		t.Fatalf("todo b changed: %+v", gotB)
	}
}

func TestPerformTodoCompleteNull(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()
	a := models.Todo{Key: "a", Description: "buy milk", Datetime: fixedNow, Created: fixedNow}
	putTodos(t, svc, a)

	if _, err := p.PerformAction(ctx, models.ActionTodoComplete, "r1", textMedia("m", "went for a walk"), []byte(`{"todoKey":null}`)); err != nil {
		t.Fatalf("perform: %v", err)
	}
	got, _, _ := svc.Todos.Get(ctx, "a")
	if !reflect.DeepEqual(got, a) {
		t.Fatalf("null todoKey must not mutate todos, got %+v", got)
	}
}

func TestPerformTodoCompleteMissingTodo(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()
	a := models.Todo{Key: "a", Description: "buy milk", Datetime: fixedNow, Created: fixedNow}
	putTodos(t, svc, a)

	result, err := p.PerformAction(ctx, models.ActionTodoComplete, "r1", textMedia("m", "did it"), []byte(`{"todoKey":"zzz"}`))
	if !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
	if result.Key != "r1" {
		t.Fatalf("expected the recorded result alongside the error, got %+v", result)
	}

	todos, err := svc.Todos.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 1 || !reflect.DeepEqual(todos[0], a) {
		t.Fatalf("todos changed: %+v", todos)
	}
	if _, ok, _ := svc.ActionResults.Get(ctx, "r1"); !ok {
		t.Fatal("action result must be recorded before the side effect fails")
	}
}

func TestTodoCompletePromptListsPendingTodos(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()
	putTodos(t, svc,
		models.Todo{Key: "a", Description: "buy milk", Created: fixedNow},
		models.Todo{Key: "b", Description: "call mom", Created: fixedNow},
		models.Todo{Key: "c", Description: "old chore", Done: true, Created: fixedNow},
	)

	prompt, err := p.Prompt(ctx, models.ActionTodoComplete, textMedia("m", "called mom"))
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	start := strings.Index(prompt, "{")
	end := strings.LastIndex(prompt, "}")
	if start < 0 || end < start {
		t.Fatalf("prompt has no JSON listing: %s", prompt)
	}
	var listed map[string]string
	if err := json.Unmarshal([]byte(prompt[start:end+1]), &listed); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	want := map[string]string{"a": "buy milk", "b": "call mom"}
	if !reflect.DeepEqual(listed, want) {
		t.Fatalf("expected %v, got %v", want, listed)
	}
	if !strings.Contains(prompt, "return null for the todoKey") {
		t.Fatalf("prompt missing null instruction: %s", prompt)
	}
}

func TestExecuteQueriesWithActionPrompt(t *testing.T) {
	p, svc := testPipeline(t)
	ctx := context.Background()
	gw := &llmtest.Gateway{
		StructuredFunc: func(system, content string) (string, error) {
			return `{"todo":"call the dentist","recommendedDueDate":"2024-06-03"}`, nil
		},
	}

	result, err := p.Execute(ctx, gw, models.ActionTodoCreate, "k1", textMedia("m1", "remind me to call the dentist"), "remind me to call the dentist")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.ActionType != models.ActionTodoCreate {
		t.Fatalf("unexpected result %+v", result)
	}
	calls := gw.CallsTo("queryStructured")
	if len(calls) != 1 || calls[0].System != todoCreatePrompt || calls[0].Content != "remind me to call the dentist" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	todo, ok, err := svc.Todos.Get(ctx, "k1")
	if err != nil || !ok || todo.Description != "call the dentist" || todo.Due != nil {
		t.Fatalf("unexpected todo %+v ok=%v err=%v", todo, ok, err)
	}
}
