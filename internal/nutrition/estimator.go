package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aryan0dhankhar/plateai/internal/domain"
	"github.com/aryan0dhankhar/plateai/internal/observability/metrics"
	"github.com/aryan0dhankhar/plateai/internal/reliability/circuitbreaker"
)

const promptTemplate = "Identify the food items in the following description and break into components " +
	"and estimate the nutritional information for each component. " +
	"If no components are detected, return an empty list. Description: %s"

// Generator sends a prompt to a structured-output language model and returns
// the raw JSON text of its answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Estimator turns a free-text meal description into per-component nutrition
// estimates. A nil generator means no model is configured.
type Estimator struct {
	gen     Generator
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewEstimator creates an estimator. breaker may be nil.
func NewEstimator(gen Generator, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Estimator{
		gen:     gen,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}
}

// Enabled reports whether a generator is configured
func (e *Estimator) Enabled() bool {
	return e != nil && e.gen != nil
}

// Estimate asks the model for the components of description. The model is
// called at most once per request.
func (e *Estimator) Estimate(ctx context.Context, description string) ([]domain.ComponentEstimate, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("%w: nutrition estimator not configured", domain.ErrServiceUnavailable)
	}

	ctx, span := otel.Tracer("plateai/nutrition").Start(ctx, "nutrition.Estimate")
	defer span.End()
	span.SetAttributes(attribute.Int("description.length", len(description)))

	// caller is the request context before the estimator's own timeout
	caller := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	var raw string
	call := func() error {
		var err error
		raw, err = e.gen.Generate(ctx, fmt.Sprintf(promptTemplate, description))
		return err
	}

	// A caller that went away says nothing about the model's health
	upstreamFault := func(error) bool { return caller.Err() == nil }

	var err error
	if e.breaker != nil {
		err = e.breaker.ExecuteCounting(call, upstreamFault)
	} else {
		err = call()
	}

	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, circuitbreaker.ErrOpen):
			result = "rejected"
		case caller.Err() != nil:
			result = "canceled"
		}
		metrics.ObserveEstimate(result, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		e.logger.Warn("nutrition estimate failed",
			slog.String("result", result),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrEstimationFailed, err)
	}

	components, err := parseComponents(raw)
	if err != nil {
		metrics.ObserveEstimate("invalid", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid response")
		e.logger.Warn("nutrition estimate returned unusable output", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", domain.ErrEstimationFailed, err)
	}

	metrics.ObserveEstimate("ok", time.Since(start))
	span.SetAttributes(attribute.Int("components.count", len(components)))
	return components, nil
}

type estimateResponse struct {
	Components *[]estimateComponent `json:"components"`
}

type estimateComponent struct {
	Name     *string  `json:"name"`
	Calories *float64 `json:"calories"`
	FatG     *float64 `json:"fat_g"`
	ProteinG *float64 `json:"protein_g"`
	CarbsG   *float64 `json:"carbs_g"`
}

// parseComponents validates the model output against the response schema
func parseComponents(raw string) ([]domain.ComponentEstimate, error) {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil, errors.New("empty response")
	}

	var resp estimateResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Components == nil {
		return nil, errors.New("response has no components field")
	}

	out := make([]domain.ComponentEstimate, 0, len(*resp.Components))
	for i, c := range *resp.Components {
		if c.Name == nil || c.Calories == nil || c.FatG == nil || c.ProteinG == nil || c.CarbsG == nil {
			return nil, fmt.Errorf("component %d is missing a required field", i)
		}
		est := domain.ComponentEstimate{
			Name: *c.Name,
			Macros: domain.Macros{
				Calories: *c.Calories,
				FatG:     *c.FatG,
				ProteinG: *c.ProteinG,
				CarbsG:   *c.CarbsG,
			},
		}
		if err := est.Macros.Validate(); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out = append(out, est)
	}
	return out, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
