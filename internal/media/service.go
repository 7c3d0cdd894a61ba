package media

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lifelog/internal/models"
	"lifelog/internal/store"
)

// Service wraps the entity store with media domain knowledge.
type Service struct {
	Media         *store.Crud[models.Media]
	ActionResults *store.Crud[models.ActionResult]
	Todos         *store.Crud[models.Todo]

	now func() time.Time
}

// NewService binds the three collections of st.
func NewService(st *store.Store) *Service {
	return &Service{
		Media:         store.Of[models.Media](st),
		ActionResults: store.Of[models.ActionResult](st),
		Todos:         store.Of[models.Todo](st),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for created timestamps.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Now returns the current time from the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// IngestInput is captured content plus its metadata.
type IngestInput struct {
	Key         string
	Payload     []byte
	ContentType string
	Source      models.IngestSource
	Filename    string
	Description string
	// Datetime is the logical event time. Zero means now.
	Datetime time.Time
}

// Ingest classifies and stores new media. Unsupported content is rejected
// before anything is written.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (models.Media, error) {
	var zero models.Media

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(in.Payload)
	}
	category, err := Classify(contentType)
	if err != nil {
		return zero, err
	}
	if in.Source == "" {
		in.Source = models.SourceFileUpload
	}
	if !models.IsValidSource(in.Source) {
		return zero, fmt.Errorf("invalid source: %s", in.Source)
	}

	key := strings.TrimSpace(in.Key)
	if key == "" {
		key = uuid.NewString()
	}
	now := s.now()
	datetime := in.Datetime
	if datetime.IsZero() {
		datetime = now
	}

	m := models.Media{
		Key:         key,
		Filename:    in.Filename,
		Category:    category,
		ContentType: contentType,
		Source:      in.Source,
		Description: in.Description,
		Payload:     in.Payload,
		Datetime:    datetime.UTC(),
		Created:     now,
	}
	return s.Media.Put(ctx, key, m)
}

// PendingTodos returns todos that are not done, oldest first.
func (s *Service) PendingTodos(ctx context.Context) ([]models.Todo, error) {
	todos, err := s.Todos.List(ctx, store.Where("done", false))
	if err != nil {
		return nil, err
	}
	sort.Slice(todos, func(i, j int) bool {
		if !todos[i].Created.Equal(todos[j].Created) {
			return todos[i].Created.Before(todos[j].Created)
		}
		return todos[i].Key < todos[j].Key
	})
	return todos, nil
}

// ResultsForMedia returns the action results recorded for one media key, oldest first.
func (s *Service) ResultsForMedia(ctx context.Context, mediaKey string) ([]models.ActionResult, error) {
	results, err := s.ActionResults.List(ctx, store.Where("mediaKey", mediaKey))
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].Created.Equal(results[j].Created) {
			return results[i].Created.Before(results[j].Created)
		}
		return results[i].Key < results[j].Key
	})
	return results, nil
}
