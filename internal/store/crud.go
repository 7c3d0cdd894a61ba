package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"lifelog/internal/models"
	"lifelog/internal/schema"
)

// Record is the closed set of types the store persists.
type Record interface {
	models.Media | models.ActionResult | models.Todo
}

// Filter is a single equality predicate over an indexed record field.
type Filter struct {
	Field string
	Value any
}

// Where builds a Filter.
func Where(field string, value any) *Filter {
	return &Filter{Field: field, Value: value}
}

// Crud is typed access to the collection that holds T.
type Crud[T Record] struct {
	store *Store
	table Table
}

// Of returns the typed handle for T's collection.
func Of[T Record](s *Store) *Crud[T] {
	collection := collectionFor[T]()
	return &Crud[T]{store: s, table: s.schema[collection]}
}

func collectionFor[T Record]() Collection {
	var zero T
	switch any(zero).(type) {
	case models.Media:
		return CollectionMedia
	case models.ActionResult:
		return CollectionActionResult
	case models.Todo:
		return CollectionTodo
	}
	panic(fmt.Sprintf("store: no collection for %T", zero))
}

// Collection returns the collection name backing this handle.
func (c *Crud[T]) Collection() Collection {
	return c.table.Name
}

// Get returns the record stored under key. A missing key yields ok=false and
// a nil error.
func (c *Crud[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, false, c.opError("get", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var value string
	var blobKey sql.NullString
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value, blob_key FROM %s WHERE key = ?", c.tableIdent()),
		key,
	).Scan(&value, &blobKey)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, c.opError("get", key, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, false, c.opError("get", key, err)
	}

	rec, err := c.decode(ctx, value, blobKey)
	if err != nil {
		return zero, false, c.opError("get", key, err)
	}
	return rec, true, nil
}

// List returns every record, or the records whose indexed field equals the
// filter value. Order is whatever SQLite yields and must not be relied on.
func (c *Crud[T]) List(ctx context.Context, filter *Filter) ([]T, error) {
	query := fmt.Sprintf("SELECT value, blob_key FROM %s", c.tableIdent())
	var args []any
	if filter != nil {
		if !c.table.HasIndex(filter.Field) {
			return nil, &Error{
				Kind:       KindContract,
				Op:         "list",
				Collection: c.table.Name,
				Err:        fmt.Errorf("%w: %s", ErrUnindexedField, filter.Field),
			}
		}
		query += fmt.Sprintf(" WHERE %s = ?", fieldExpr(filter.Field))
		args = append(args, filterValue(filter.Value))
	}

	type row struct {
		value   string
		blobKey sql.NullString
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, c.opError("list", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.opError("list", "", err)
	}
	var raw []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.value, &r.blobKey); err != nil {
			rows.Close()
			return nil, c.opError("list", "", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, c.opError("list", "", err)
	}
	rows.Close()
	if err := tx.Commit(); err != nil {
		return nil, c.opError("list", "", err)
	}

	out := make([]T, 0, len(raw))
	for _, r := range raw {
		rec, err := c.decode(ctx, r.value, r.blobKey)
		if err != nil {
			return nil, c.opError("list", "", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Put creates or overwrites the record under key. It returns the record in
// stored form: times in UTC and ActionResult values JSON-decoded, so the result
// deep-equals what Get later yields.
func (c *Crud[T]) Put(ctx context.Context, key string, rec T) (T, error) {
	var zero T
	if key == "" {
		return zero, &Error{Kind: KindContract, Op: "put", Collection: c.table.Name, Err: fmt.Errorf("key is required")}
	}
	rec, err := canonical(rec)
	if err != nil {
		return zero, c.opError("put", key, err)
	}

	stored := rec
	var blobKey any
	var newBlob string
	if m, ok := any(&stored).(*models.Media); ok && c.store.blobs != nil && len(m.Payload) > 0 {
		ref, err := c.store.blobs.Put(ctx, m.Payload, m.ContentType)
		if err != nil {
			return zero, c.opError("put", key, fmt.Errorf("store payload: %w", err))
		}
		blobKey = ref.Key
		newBlob = ref.Key
		m.Payload = nil
	}
	// Until the row commits nothing references the new payload. Callers
	// holding a transaction roll it back first: the pool has one connection.
	fail := func(err error) (T, error) {
		if newBlob != "" {
			c.store.releaseBlob(ctx, newBlob)
		}
		return zero, c.opError("put", key, err)
	}

	value, err := json.Marshal(stored)
	if err != nil {
		return fail(err)
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := c.blobKeyOf(ctx, tx, key)
	if err != nil {
		_ = tx.Rollback()
		return fail(err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, blob_key, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			blob_key = excluded.blob_key,
			updated_at = excluded.updated_at
	`, c.tableIdent()), key, string(value), blobKey, formatTime(time.Now()))
	if err != nil {
		_ = tx.Rollback()
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}

	if previous.Valid && previous.String != blobKey {
		c.store.releaseBlob(ctx, previous.String)
	}
	return rec, nil
}

// Delete removes the record under key. Deleting a missing key is not an error.
func (c *Crud[T]) Delete(ctx context.Context, key string) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return c.opError("delete", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := c.blobKeyOf(ctx, tx, key)
	if err != nil {
		return c.opError("delete", key, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE key = ?", c.tableIdent()), key); err != nil {
		return c.opError("delete", key, err)
	}
	if err := tx.Commit(); err != nil {
		return c.opError("delete", key, err)
	}

	if previous.Valid {
		c.store.releaseBlob(ctx, previous.String)
	}
	return nil
}

// canonical brings rec into the form it has after a JSON round trip through
// the store.
func canonical[T Record](rec T) (T, error) {
	switch r := any(&rec).(type) {
	case *models.Media:
		r.Datetime = r.Datetime.UTC()
		r.Created = r.Created.UTC()
	case *models.ActionResult:
		r.Datetime = r.Datetime.UTC()
		r.Created = r.Created.UTC()
		if r.Value != nil {
			value, err := schema.ToMap(r.Value)
			if err != nil {
				return rec, fmt.Errorf("encode value: %w", err)
			}
			r.Value = value
		}
	case *models.Todo:
		r.Datetime = r.Datetime.UTC()
		r.Created = r.Created.UTC()
		if r.Due != nil {
			due := r.Due.UTC()
			r.Due = &due
		}
	}
	return rec, nil
}

func (c *Crud[T]) blobKeyOf(ctx context.Context, tx *sql.Tx, key string) (sql.NullString, error) {
	var blobKey sql.NullString
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT blob_key FROM %s WHERE key = ?", c.tableIdent()),
		key,
	).Scan(&blobKey)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullString{}, nil
	}
	return blobKey, err
}

func (c *Crud[T]) decode(ctx context.Context, value string, blobKey sql.NullString) (T, error) {
	var rec T
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	if !blobKey.Valid {
		return rec, nil
	}
	m, ok := any(&rec).(*models.Media)
	if !ok {
		return rec, nil
	}
	if c.store.blobs == nil {
		return rec, fmt.Errorf("payload %s stored out of line but no blob store is attached", blobKey.String)
	}
	data, err := c.store.blobs.Get(ctx, blobKey.String)
	if err != nil {
		return rec, fmt.Errorf("load payload: %w", err)
	}
	m.Payload = data
	return rec, nil
}

func (c *Crud[T]) tableIdent() string {
	return quoteIdent(string(c.table.Name))
}

func (c *Crud[T]) opError(op, key string, err error) error {
	return &Error{Kind: KindOperation, Op: op, Collection: c.table.Name, Key: key, Err: err}
}

// releaseBlob deletes a payload once no media row references it. Failures are
// logged only: the row change has already committed.
func (s *Store) releaseBlob(ctx context.Context, blobKey string) {
	if s.blobs == nil || blobKey == "" {
		return
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE blob_key = ? LIMIT 1", quoteIdent(string(CollectionMedia))),
		blobKey,
	).Scan(&one)
	if err == nil {
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("check payload references", "blob_key", blobKey, "error", err)
		return
	}
	if err := s.blobs.Delete(ctx, blobKey); err != nil {
		s.logger.Warn("delete unreferenced payload", "blob_key", blobKey, "error", err)
	}
}

// filterValue converts a Go value into what json_extract yields for the same
// JSON-encoded field.
func filterValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		if v {
			return 1
		}
		return 0
	case time.Time:
		return formatTime(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return formatTime(*v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
