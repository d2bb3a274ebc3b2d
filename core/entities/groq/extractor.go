// Package groq extracts music entities by asking a Groq hosted model for a
// structured answer instead of running the local tagging model.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/justplayit/core/entities"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel = "openai/gpt-oss-20b"

	defaultInstructions = `You extract music entities from a voice command.
Return every artist name in "artists" and every song, album or other work title in "works_of_art",
each in the order they appear and spelled as in the command. Use empty lists when nothing is found.`
)

var ErrEmptyResponse = errors.New("groq: empty response")

// MusicEntities is the structured answer requested from the model.
type MusicEntities struct {
	Artists    []string `json:"artists" jsonschema:"description=Artist names in order of appearance"`
	WorksOfArt []string `json:"works_of_art" jsonschema:"description=Song or album titles in order of appearance"`
}

type Extractor struct {
	apiKey       string
	model        string
	url          string
	instructions string
	httpClient   *http.Client
	schema       *jsonschema.Schema
}

type ExtractorOption func(*Extractor)

func WithAPIKey(apiKey string) ExtractorOption {
	return func(e *Extractor) { e.apiKey = apiKey }
}

func WithModel(model string) ExtractorOption {
	return func(e *Extractor) { e.model = model }
}

func WithURL(url string) ExtractorOption {
	return func(e *Extractor) { e.url = url }
}

func WithInstructions(instructions string) ExtractorOption {
	return func(e *Extractor) { e.instructions = instructions }
}

func WithHTTPClient(httpClient *http.Client) ExtractorOption {
	return func(e *Extractor) {
		if httpClient != nil {
			e.httpClient = httpClient
		}
	}
}

// NewExtractor reads the API key from GROQ_API_KEY unless WithAPIKey is
// given.
func NewExtractor(opts ...ExtractorOption) (*Extractor, error) {
	e := &Extractor{
		apiKey:       os.Getenv("GROQ_API_KEY"),
		model:        defaultModel,
		url:          defaultURL,
		instructions: defaultInstructions,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY not set")
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	e.schema = reflector.Reflect(&MusicEntities{})
	return e, nil
}

// Extract returns entities without token ranges; spans carry text only.
func (e *Extractor) Extract(ctx context.Context, text string) (entities.Entities, error) {
	ctx, span := tracer.Start(ctx, "extract entities with llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", e.model))

	answer, err := e.prompt(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return entities.Entities{}, err
	}

	result := entities.Entities{
		Artists:    toSpans(entities.KindArtist, answer.Artists),
		WorksOfArt: toSpans(entities.KindWorkOfArt, answer.WorksOfArt),
	}
	span.SetAttributes(
		attribute.Int("entities.artists", len(result.Artists)),
		attribute.Int("entities.works_of_art", len(result.WorksOfArt)),
	)
	return result, nil
}

func (e *Extractor) prompt(ctx context.Context, text string) (*MusicEntities, error) {
	reqBody := requestBody{
		Model: e.model,
		Messages: []message{
			{Role: messageRoleSystem, Content: e.instructions},
			{Role: messageRoleUser, Content: text},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "MusicEntities",
				Schema: *e.schema,
				Strict: true,
			},
		},
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			logger.WarnContext(ctx, "entity extraction request failed", "status", resp.Status, "body", string(errorBody))
		}
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var responseBody responseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return nil, fmt.Errorf("error unmarshalling response body: %w", err)
	}
	if len(responseBody.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	content := responseBody.Choices[0].Message.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}

	var answer MusicEntities
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}
	return &answer, nil
}

func toSpans(kind entities.Kind, texts []string) []entities.Span {
	var spans []entities.Span
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		spans = append(spans, entities.Span{Kind: kind, Text: text})
	}
	return spans
}
