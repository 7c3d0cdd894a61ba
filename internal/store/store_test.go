package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"lifelog/internal/blobstore"
	"lifelog/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testStoreWithBlobs(t *testing.T) (*Store, *blobstore.LocalCAS) {
	t.Helper()
	cas, err := blobstore.NewLocalCAS(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{Blobs: cas})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, cas
}

func testNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", Options{})
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	if !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatal("connection error must not be retryable")
	}
}

func TestMediaRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()

	media := models.Media{
		Key:         "m-1",
		Filename:    "note.txt",
		Category:    models.CategoryText,
		ContentType: "text/plain",
		Source:      models.SourceTextNote,
		Description: "a note",
		Payload:     []byte("I ate a salad"),
		Datetime:    now.Add(-time.Hour),
		Created:     now,
	}

	stored, err := Of[models.Media](st).Put(ctx, media.Key, media)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !reflect.DeepEqual(stored, media) {
		t.Fatalf("put should return the record unchanged: %#v", stored)
	}

	got, ok, err := Of[models.Media](st).Get(ctx, media.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected media to exist")
	}
	if !reflect.DeepEqual(got, media) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, media)
	}
}

func TestActionResultRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()

	result := models.ActionResult{
		Key:        "ar-1",
		MediaKey:   "m-1",
		ActionType: models.ActionFoodEstimate,
		Value: map[string]any{
			"mealDescription": "salad",
			"calories":        float64(320),
			"notes":           "",
		},
		Datetime: now,
		Created:  now,
	}

	if _, err := Of[models.ActionResult](st).Put(ctx, result.Key, result); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := Of[models.ActionResult](st).Get(ctx, result.Key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, result) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, result)
	}
}

func TestTodoRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()
	due := now.Add(24 * time.Hour)

	for _, todo := range []models.Todo{
		{Key: "t-1", MediaKey: "m-1", Description: "buy milk", Done: false, Due: nil, Datetime: now, Created: now},
		{Key: "t-2", MediaKey: "m-1", Description: "call mom", Done: true, Due: &due, Datetime: now, Created: now},
	} {
		if _, err := Of[models.Todo](st).Put(ctx, todo.Key, todo); err != nil {
			t.Fatalf("put %s: %v", todo.Key, err)
		}
		got, ok, err := Of[models.Todo](st).Get(ctx, todo.Key)
		if err != nil || !ok {
			t.Fatalf("get %s: ok=%v err=%v", todo.Key, ok, err)
		}
		if !reflect.DeepEqual(got, todo) {
			t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, todo)
		}
	}
}

func TestGetMissingKey(t *testing.T) {
	st := testStore(t)

	got, ok, err := Of[models.Todo](st).Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatalf("expected absent, got %#v", got)
	}
}

func TestPutOverwrites(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()
	todos := Of[models.Todo](st)

	todo := models.Todo{Key: "t-1", Description: "first", Datetime: now, Created: now}
	if _, err := todos.Put(ctx, "t-1", todo); err != nil {
		t.Fatalf("put: %v", err)
	}
	todo.Description = "second"
	todo.Done = true
	if _, err := todos.Put(ctx, "t-1", todo); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	all, err := todos.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", len(all))
	}
	if all[0].Description != "second" || !all[0].Done {
		t.Fatalf("expected overwritten todo, got %#v", all[0])
	}
}

func TestPutRequiresKey(t *testing.T) {
	st := testStore(t)
	_, err := Of[models.Todo](st).Put(context.Background(), "", models.Todo{})
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Kind != KindContract {
		t.Fatalf("expected contract error, got %v", err)
	}
}

func TestDeleteAbsentKey(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	media := Of[models.Media](st)

	if err := media.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, ok, err := media.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent after delete: ok=%v err=%v", ok, err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()
	todos := Of[models.Todo](st)

	if _, err := todos.Put(ctx, "t-1", models.Todo{Key: "t-1", Created: now, Datetime: now}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := todos.Delete(ctx, "t-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := todos.Get(ctx, "t-1"); err != nil || ok {
		t.Fatalf("expected absent after delete: ok=%v err=%v", ok, err)
	}
}

func TestListFilters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()
	todos := Of[models.Todo](st)

	seed := []models.Todo{
		{Key: "a", MediaKey: "m-1", Description: "buy milk", Done: false, Datetime: now, Created: now},
		{Key: "b", MediaKey: "m-1", Description: "call mom", Done: false, Datetime: now, Created: now.Add(time.Second)},
		{Key: "c", MediaKey: "m-2", Description: "file taxes", Done: true, Datetime: now, Created: now.Add(2 * time.Second)},
	}
	for _, todo := range seed {
		if _, err := todos.Put(ctx, todo.Key, todo); err != nil {
			t.Fatalf("put %s: %v", todo.Key, err)
		}
	}

	tests := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{name: "all", filter: nil, want: []string{"a", "b", "c"}},
		{name: "pending", filter: Where("done", false), want: []string{"a", "b"}},
		{name: "done", filter: Where("done", true), want: []string{"c"}},
		{name: "by media", filter: Where("mediaKey", "m-2"), want: []string{"c"}},
		{name: "by created", filter: Where("created", now.Add(time.Second)), want: []string{"b"}},
		{name: "no match", filter: Where("mediaKey", "m-9"), want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := todos.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			keys := make([]string, 0, len(got))
			for _, todo := range got {
				keys = append(keys, todo.Key)
			}
			sort.Strings(keys)
			if !reflect.DeepEqual(keys, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, keys)
			}
		})
	}
}

func TestListActionResultsByTypedEnum(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()
	results := Of[models.ActionResult](st)

	for _, r := range []models.ActionResult{
		{Key: "r1", MediaKey: "m", ActionType: models.ActionTodoCreate, Value: map[string]any{}, Created: now, Datetime: now},
		{Key: "r2", MediaKey: "m", ActionType: models.ActionFoodEstimate, Value: map[string]any{}, Created: now, Datetime: now},
	} {
		if _, err := results.Put(ctx, r.Key, r); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, err := results.List(ctx, Where("actionType", models.ActionFoodEstimate))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Key != "r2" {
		t.Fatalf("expected only r2, got %#v", got)
	}
}

func TestListUnindexedField(t *testing.T) {
	st := testStore(t)

	_, err := Of[models.Todo](st).List(context.Background(), Where("description", "buy milk"))
	if !errors.Is(err, ErrUnindexedField) {
		t.Fatalf("expected ErrUnindexedField, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatal("contract violation must not be retryable")
	}

	_, err = Of[models.Media](st).List(context.Background(), Where("key", "x"))
	if !errors.Is(err, ErrUnindexedField) {
		t.Fatalf("expected ErrUnindexedField for media, got %v", err)
	}
}

func TestMediaPayloadInBlobStore(t *testing.T) {
	st, cas := testStoreWithBlobs(t)
	ctx := context.Background()
	now := testNow()
	media := Of[models.Media](st)

	rec := models.Media{
		Key:         "m-1",
		Filename:    "photo.png",
		Category:    models.CategoryImage,
		ContentType: "image/png",
		Source:      models.SourcePhoto,
		Payload:     []byte{0x89, 'P', 'N', 'G'},
		Datetime:    now,
		Created:     now,
	}
	if _, err := media.Put(ctx, rec.Key, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	var value string
	var blobKey string
	if err := st.db.QueryRow(`SELECT value, blob_key FROM "media" WHERE key = ?`, rec.Key).Scan(&value, &blobKey); err != nil {
		t.Fatalf("select raw row: %v", err)
	}
	if blobKey == "" {
		t.Fatal("expected payload to be stored out of line")
	}
	if data, err := cas.Get(ctx, blobKey); err != nil || string(data) != string(rec.Payload) {
		t.Fatalf("expected payload in blob store: data=%q err=%v", data, err)
	}

	got, ok, err := media.Get(ctx, rec.Key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, rec)
	}

	all, err := media.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || string(all[0].Payload) != string(rec.Payload) {
		t.Fatalf("expected listed media with payload, got %#v", all)
	}
}

func TestMediaDeleteKeepsSharedPayload(t *testing.T) {
	st, cas := testStoreWithBlobs(t)
	ctx := context.Background()
	now := testNow()
	media := Of[models.Media](st)

	payload := []byte("same bytes")
	for _, key := range []string{"m-1", "m-2"} {
		rec := models.Media{Key: key, ContentType: "text/plain", Category: models.CategoryText, Payload: payload, Created: now, Datetime: now}
		if _, err := media.Put(ctx, key, rec); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	var blobKey string
	if err := st.db.QueryRow(`SELECT blob_key FROM "media" WHERE key = ?`, "m-1").Scan(&blobKey); err != nil {
		t.Fatalf("select blob key: %v", err)
	}

	if err := media.Delete(ctx, "m-1"); err != nil {
		t.Fatalf("delete m-1: %v", err)
	}
	if _, err := cas.Get(ctx, blobKey); err != nil {
		t.Fatalf("payload still referenced by m-2 should survive: %v", err)
	}

	if err := media.Delete(ctx, "m-2"); err != nil {
		t.Fatalf("delete m-2: %v", err)
	}
	if _, err := cas.Get(ctx, blobKey); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected unreferenced payload to be removed, got %v", err)
	}
}

func TestDeleteMediaDoesNotCascade(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()

	if _, err := Of[models.Media](st).Put(ctx, "m-1", models.Media{Key: "m-1", Created: now, Datetime: now}); err != nil {
		t.Fatalf("put media: %v", err)
	}
	if _, err := Of[models.Todo](st).Put(ctx, "t-1", models.Todo{Key: "t-1", MediaKey: "m-1", Created: now, Datetime: now}); err != nil {
		t.Fatalf("put todo: %v", err)
	}
	if err := Of[models.Media](st).Delete(ctx, "m-1"); err != nil {
		t.Fatalf("delete media: %v", err)
	}
	if _, ok, err := Of[models.Todo](st).Get(ctx, "t-1"); err != nil || !ok {
		t.Fatalf("todo should survive media deletion: ok=%v err=%v", ok, err)
	}
}

func TestOperationErrorsAreRetryable(t *testing.T) {
	st := testStore(t)
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, _, err := Of[models.Todo](st).Get(context.Background(), "t-1")
	if err == nil {
		t.Fatal("expected error on closed store")
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable operation error, got %v", err)
	}
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Collection != CollectionTodo || storeErr.Op != "get" {
		t.Fatalf("unexpected error details: %#v", storeErr)
	}
}

func TestFilterValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "true", in: true, want: 1},
		{name: "false", in: false, want: 0},
		{name: "string", in: "m-1", want: "m-1"},
		{name: "named string", in: models.ActionTodoCreate, want: "TODO_CREATE"},
		{name: "int", in: 3, want: int64(3)},
		{name: "time", in: ts, want: "2024-05-01T12:00:00Z"},
		{name: "time in other zone", in: ts.In(time.FixedZone("CEST", 2*60*60)), want: "2024-05-01T12:00:00Z"},
		{name: "time pointer", in: &ts, want: "2024-05-01T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterValue(tt.in); got != tt.want {
				t.Fatalf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestListByTimeIgnoresZone(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	todos := Of[models.Todo](st)
	cest := time.FixedZone("CEST", 2*60*60)
	created := testNow().In(cest)

	stored, err := todos.Put(ctx, "t-1", models.Todo{Key: "t-1", MediaKey: "m", Created: created, Datetime: created})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if stored.Created.Location() != time.UTC || !stored.Created.Equal(created) {
		t.Fatalf("expected created normalized to UTC, got %v", stored.Created)
	}

	for _, when := range []time.Time{created, created.UTC(), created.In(time.FixedZone("PST", -8*60*60))} {
		got, err := todos.List(ctx, Where("created", when))
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("filter by %v: expected 1 todo, got %d", when, len(got))
		}
	}

	got, _, err := todos.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, stored) {
		t.Fatalf("get mismatch:\n got %#v\nwant %#v", got, stored)
	}
}

func TestPutReturnsJSONDecodedValue(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := testNow()
	results := Of[models.ActionResult](st)

	result := models.ActionResult{
		Key:        "ar-1",
		MediaKey:   "m-1",
		ActionType: models.ActionFoodEstimate,
		Value:      map[string]any{"calories": 100, "tags": []string{"lunch"}},
		Datetime:   now,
		Created:    now,
	}
	stored, err := results.Put(ctx, result.Key, result)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if stored.Value["calories"] != float64(100) {
		t.Fatalf("expected calories as float64, got %T", stored.Value["calories"])
	}
	got, _, err := results.Get(ctx, result.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, stored) {
		t.Fatalf("get mismatch:\n got %#v\nwant %#v", got, stored)
	}
}

func TestFailedPutReleasesNewPayload(t *testing.T) {
	st, cas := testStoreWithBlobs(t)
	ctx := context.Background()
	now := testNow()
	media := Of[models.Media](st)

	shared := []byte("kept bytes")
	if _, err := media.Put(ctx, "m-1", models.Media{Key: "m-1", ContentType: "text/plain", Payload: shared, Created: now, Datetime: now}); err != nil {
		t.Fatalf("put m-1: %v", err)
	}
	if _, err := st.db.Exec(`CREATE TRIGGER reject_media BEFORE INSERT ON "media" BEGIN SELECT RAISE(ABORT, 'rejected'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	orphan := []byte("orphan bytes")
	if _, err := media.Put(ctx, "m-2", models.Media{Key: "m-2", ContentType: "text/plain", Payload: orphan, Created: now, Datetime: now}); err == nil {
		t.Fatal("expected put to fail")
	}
	if _, err := cas.Get(ctx, payloadKey(orphan)); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected payload of failed put to be removed, got %v", err)
	}

	if _, err := media.Put(ctx, "m-3", models.Media{Key: "m-3", ContentType: "text/plain", Payload: shared, Created: now, Datetime: now}); err == nil {
		t.Fatal("expected put to fail")
	}
	if _, err := cas.Get(ctx, payloadKey(shared)); err != nil {
		t.Fatalf("payload referenced by m-1 should survive: %v", err)
	}
}

func payloadKey(data []byte) string {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return "sha256/" + digest[0:2] + "/" + digest[2:4] + "/" + digest
}
