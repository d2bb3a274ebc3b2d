// Package inference runs the entity tagging model behind an HTTP model
// server.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/koscakluka/justplayit/core/entities"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultTimeout = 10 * time.Second

var ErrUnexpectedResponse = errors.New("inference: unexpected response")

type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Loader returns a model loader that checks the server is reachable before
// handing out the client.
func Loader(endpoint string, opts ...ClientOption) entities.ModelLoader {
	return func(ctx context.Context) (entities.Model, error) {
		client := NewClient(endpoint, opts...)
		if err := client.Ping(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}

type inferRequest struct {
	InputIDs      [][]int `json:"input_ids"`
	AttentionMask [][]int `json:"attention_mask"`
}

type inferResponse struct {
	Logits [][][]float32 `json:"logits"`
}

// Infer sends the padded sequence and returns one label row per content
// token.
func (c *Client) Infer(ctx context.Context, tokens entities.TokenSequence) (entities.LabelMatrix, error) {
	ctx, span := tracer.Start(ctx, "infer entity labels")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tokens.length", len(tokens.IDs)),
		attribute.Int("tokens.filled", tokens.FilledCount),
	)

	labels, err := c.infer(ctx, tokens)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return labels, nil
}

func (c *Client) infer(ctx context.Context, tokens entities.TokenSequence) (entities.LabelMatrix, error) {
	body, err := json.Marshal(inferRequest{
		InputIDs:      [][]int{tokens.IDs},
		AttentionMask: [][]int{tokens.AttentionMask()},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.WarnContext(ctx, "inference request failed", "status", resp.Status, "body", string(errorBody))
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var response inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}
	if len(response.Logits) != 1 {
		return nil, fmt.Errorf("%w: expected 1 sequence, got %d", ErrUnexpectedResponse, len(response.Logits))
	}

	rows := response.Logits[0]
	if len(rows) < tokens.FilledCount {
		return nil, fmt.Errorf("%w: %d rows for %d tokens", ErrUnexpectedResponse, len(rows), tokens.FilledCount)
	}

	labels := make(entities.LabelMatrix, tokens.FilledCount)
	for i := range labels {
		labels[i] = rows[i]
	}
	return labels, nil
}

// Ping checks that the model server answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("model server unhealthy: %s", resp.Status)
	}
	return nil
}
