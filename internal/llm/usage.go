package llm

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Usage is the token accounting for one provider call.
type Usage struct {
	Model        string
	Op           string
	PromptTokens int
	TotalTokens  int
}

// UsageRecorder receives one Usage per successful provider call.
type UsageRecorder interface {
	RecordUsage(Usage)
}

// Telemetry logs usage and counts tokens per model and operation.
type Telemetry struct {
	logger *slog.Logger
	prompt *prometheus.CounterVec
	total  *prometheus.CounterVec
}

var _ UsageRecorder = (*Telemetry)(nil)

// NewTelemetry registers token counters on reg. A nil reg keeps the counters
// unregistered, and a nil logger uses slog.Default.
func NewTelemetry(logger *slog.Logger, reg prometheus.Registerer) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	prompt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelog_llm_prompt_tokens_total",
		Help: "Prompt tokens consumed by language-model calls.",
	}, []string{"model", "op"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelog_llm_total_tokens_total",
		Help: "Total tokens consumed by language-model calls.",
	}, []string{"model", "op"})

	if reg != nil {
		var err error
		if prompt, err = registerCounter(reg, prompt); err != nil {
			return nil, err
		}
		if total, err = registerCounter(reg, total); err != nil {
			return nil, err
		}
	}
	return &Telemetry{logger: logger, prompt: prompt, total: total}, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (t *Telemetry) RecordUsage(u Usage) {
	t.logger.Info("LLM Used Tokens",
		"model", u.Model,
		"op", u.Op,
		"prompt_tokens", u.PromptTokens,
		"total_tokens", u.TotalTokens,
	)
	t.prompt.WithLabelValues(u.Model, u.Op).Add(float64(u.PromptTokens))
	t.total.WithLabelValues(u.Model, u.Op).Add(float64(u.TotalTokens))
}

// PromptTokens returns the prompt token counter for tests and reporting.
func (t *Telemetry) PromptTokens(model, op string) prometheus.Counter {
	return t.prompt.WithLabelValues(model, op)
}

// TotalTokens returns the total token counter for tests and reporting.
func (t *Telemetry) TotalTokens(model, op string) prometheus.Counter {
	return t.total.WithLabelValues(model, op)
}

// Discard is a recorder that drops usage.
type Discard struct{}

func (Discard) RecordUsage(Usage) {}
