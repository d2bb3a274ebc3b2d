package entities

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// Tokenizer splits text into model token ids.
type Tokenizer interface {
	Tokenize(text string) ([]int, error)
}

// Model scores every content token of a sequence against the labels.
type Model interface {
	Infer(ctx context.Context, tokens TokenSequence) (LabelMatrix, error)
}

// ModelLoader prepares a model. It may be slow, so the predictor calls it at
// most once per successful load.
type ModelLoader func(ctx context.Context) (Model, error)

type Predictor struct {
	tokenizer Tokenizer
	detok     Detokenizer
	load      ModelLoader
	maxLength int
	padID     int

	loads singleflight.Group
	mu    sync.RWMutex
	model Model

	inferenceDuration metric.Float64Histogram
}

type PredictorOption func(*Predictor)

func WithMaxLength(maxLength int) PredictorOption {
	return func(p *Predictor) {
		if maxLength > 0 {
			p.maxLength = maxLength
		}
	}
}

func WithPadID(padID int) PredictorOption {
	return func(p *Predictor) { p.padID = padID }
}

// WithModel installs an already loaded model; the loader is then never used.
func WithModel(model Model) PredictorOption {
	return func(p *Predictor) { p.model = model }
}

func NewPredictor(tokenizer Tokenizer, detok Detokenizer, load ModelLoader, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		tokenizer: tokenizer,
		detok:     detok,
		load:      load,
		maxLength: DefaultMaxLength,
		padID:     DefaultPadID,
	}
	for _, opt := range opts {
		opt(p)
	}

	histogram, err := meter.Float64Histogram("entities.inference.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of entity tagging inference"))
	if err != nil {
		logger.Warn("failed to create inference duration histogram", "error", err)
	}
	p.inferenceDuration = histogram

	return p
}

// Extract tokenizes text, runs the model and decodes the tagged spans.
func (p *Predictor) Extract(ctx context.Context, text string) (Entities, error) {
	ctx, span := tracer.Start(ctx, "extract entities")
	defer span.End()

	entities, err := p.extract(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Entities{}, err
	}
	span.SetAttributes(
		attribute.Int("entities.artists", len(entities.Artists)),
		attribute.Int("entities.works_of_art", len(entities.WorksOfArt)),
	)
	return entities, nil
}

func (p *Predictor) extract(ctx context.Context, text string) (Entities, error) {
	ids, err := p.tokenizer.Tokenize(text)
	if err != nil {
		return Entities{}, fmt.Errorf("failed to tokenize: %w", err)
	}
	if len(ids) == 0 {
		return Entities{}, ErrEmptyTokenizer
	}
	tokens := NewTokenSequence(ids, p.maxLength, p.padID)
	if len(ids) > p.maxLength {
		logger.WarnContext(ctx, "input truncated to model length", "tokens", len(ids), "max_length", p.maxLength)
	}

	model, err := p.Model(ctx)
	if err != nil {
		return Entities{}, err
	}

	start := time.Now()
	labels, err := model.Infer(ctx, tokens)
	if p.inferenceDuration != nil {
		p.inferenceDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return Entities{}, fmt.Errorf("failed to run inference: %w", err)
	}

	return Decode(tokens, labels, p.detok)
}

// Model returns the loaded model, loading it on first use. Concurrent callers
// share one in-flight load; a failed load is retried by the next caller.
func (p *Predictor) Model(ctx context.Context) (Model, error) {
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()
	if model != nil {
		return model, nil
	}
	if p.load == nil {
		return nil, fmt.Errorf("%w: no loader configured", ErrModelUnavailable)
	}

	loaded, err, _ := p.loads.Do("model", func() (any, error) {
		p.mu.RLock()
		model := p.model
		p.mu.RUnlock()
		if model != nil {
			return model, nil
		}

		logger.InfoContext(ctx, "loading entity model")
		model, err := p.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if model == nil {
			return nil, fmt.Errorf("loader returned no model")
		}

		p.mu.Lock()
		p.model = model
		p.mu.Unlock()
		return model, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return loaded.(Model), nil
}
