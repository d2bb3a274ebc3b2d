package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/koscakluka/justplayit/core/music"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Resolution is the outcome of the actions issued for one command. Provider
// failures are reported here and never returned as errors.
type Resolution struct {
	Command Command

	PlayAttempted bool
	Played        *music.Track
	PlayErr       error

	Results   []music.Track
	SearchErr error
}

type Resolver struct {
	extractor      EntityExtractor
	provider       music.Provider
	trigger        string
	filterExplicit bool
	beforePlayback func(ctx context.Context)

	resolvedCounter metric.Int64Counter
}

type ResolverOption func(*Resolver)

// WithTriggerPhrase replaces "please play".
func WithTriggerPhrase(phrase string) ResolverOption {
	return func(r *Resolver) {
		if phrase != "" {
			r.trigger = phrase
		}
	}
}

// WithExplicitFilter drops explicit tracks from search results.
func WithExplicitFilter(enabled bool) ResolverOption {
	return func(r *Resolver) { r.filterExplicit = enabled }
}

// WithBeforePlayback runs hook right before a direct play is attempted.
func WithBeforePlayback(hook func(ctx context.Context)) ResolverOption {
	return func(r *Resolver) { r.beforePlayback = hook }
}

func NewResolver(extractor EntityExtractor, provider music.Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		extractor: extractor,
		provider:  provider,
		trigger:   DefaultTriggerPhrase,
	}
	for _, opt := range opts {
		opt(r)
	}

	counter, err := meter.Int64Counter("commands.resolved",
		metric.WithDescription("Commands that produced a play or search action"))
	if err != nil {
		logger.Warn("failed to create resolved commands counter", "error", err)
	}
	r.resolvedCounter = counter

	return r
}

// Detect reports whether transcript contains the trigger phrase.
func (r *Resolver) Detect(transcript string) bool {
	_, found := findTrigger(transcript, r.trigger)
	return found
}

// Parse extracts the command from transcript. It returns nil without error
// when there is no trigger phrase or nothing to search for.
func (r *Resolver) Parse(ctx context.Context, transcript string) (*Command, error) {
	analyzed, found := findTrigger(transcript, r.trigger)
	if !found {
		return nil, nil
	}

	extracted, err := r.extractor.Extract(ctx, analyzed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}

	artist := extracted.FirstArtist()
	title := extracted.FirstWorkOfArt()
	if artist == "" && title == "" && trailingText(analyzed, r.trigger) == "" {
		return nil, nil
	}
	query := formulateQuery(artist, title, analyzed)

	return &Command{
		ID:            uuid.New(),
		RawTranscript: transcript,
		AnalyzedText:  analyzed,
		TriggerFound:  true,
		Entities:      extracted,
		Artist:        artist,
		Title:         title,
		ResolvedQuery: query,
	}, nil
}

// Resolve parses transcript and, for an actionable command, runs the direct
// play and the search concurrently.
func (r *Resolver) Resolve(ctx context.Context, transcript string) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "resolve command")
	defer span.End()

	command, err := r.Parse(ctx, transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if command == nil {
		span.SetAttributes(attribute.Bool("command.found", false))
		return nil, nil
	}
	span.SetAttributes(
		attribute.Bool("command.found", true),
		attribute.String("command.id", command.ID.String()),
		attribute.String("command.query", command.ResolvedQuery),
	)

	return r.Execute(ctx, *command), nil
}

// Execute runs the direct play, when the command names an entity, and the
// search concurrently. Provider failures are reported in the resolution.
func (r *Resolver) Execute(ctx context.Context, command Command) *Resolution {
	ctx, span := tracer.Start(ctx, "execute command", trace.WithAttributes(
		attribute.String("command.id", command.ID.String()),
	))
	defer span.End()

	resolution := &Resolution{Command: command}

	var group errgroup.Group
	if command.HasEntity() {
		resolution.PlayAttempted = true
		group.Go(func() error {
			if r.beforePlayback != nil {
				r.beforePlayback(ctx)
			}
			track, err := r.provider.Play(ctx, command.Artist, command.Title)
			if err != nil {
				resolution.PlayErr = fmt.Errorf("%w: %w", ErrProviderPlayback, err)
				logger.WarnContext(ctx, "direct play failed",
					"command_id", command.ID.String(),
					"artist", command.Artist,
					"title", command.Title,
					"error", err)
				return nil
			}
			resolution.Played = &track
			return nil
		})
	}
	group.Go(func() error {
		results, err := r.provider.Search(ctx, command.ResolvedQuery)
		if err != nil {
			resolution.SearchErr = fmt.Errorf("%w: %w", ErrSearchFailure, err)
			logger.WarnContext(ctx, "search failed",
				"command_id", command.ID.String(),
				"query", command.ResolvedQuery,
				"error", err)
			return nil
		}
		resolution.Results = results
		return nil
	})
	_ = group.Wait()

	resolution.Results = FilterResults(resolution.Results, command.Artist, command.Title)
	if r.filterExplicit {
		resolution.Results = withoutExplicit(resolution.Results)
	}

	if r.resolvedCounter != nil {
		r.resolvedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("played", resolution.Played != nil),
		))
	}
	logger.InfoContext(ctx, "command resolved",
		"command_id", command.ID.String(),
		"query", command.ResolvedQuery,
		"played", resolution.Played != nil,
		"results", len(resolution.Results))

	return resolution
}
