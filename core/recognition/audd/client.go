// Package audd recognizes songs by uploading short WAV snippets to the AudD
// music recognition API.
package audd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/koscakluka/justplayit/core/audio"
	"github.com/koscakluka/justplayit/core/recognition"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL         = "https://api.audd.io/"
	defaultWindow      = 8 * time.Second
	defaultMaxAttempts = 3
)

var errInputEnded = errors.New("audd: input ended")

type Client struct {
	apiToken    string
	url         string
	window      time.Duration
	maxAttempts int
	httpClient  *http.Client
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type ClientOption func(*Client)

func WithAPIToken(token string) ClientOption {
	return func(c *Client) { c.apiToken = token }
}

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

// WithWindow sets how much audio is uploaded per attempt.
func WithWindow(window time.Duration) ClientOption {
	return func(c *Client) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithMaxAttempts bounds how many windows RecognizeOnce tries before giving
// up with recognition.ErrNoMatchFound.
func WithMaxAttempts(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient reads the token from AUDD_API_TOKEN unless WithAPIToken is given.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		apiToken:    os.Getenv("AUDD_API_TOKEN"),
		url:         defaultURL,
		window:      defaultWindow,
		maxAttempts: defaultMaxAttempts,
		httpClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiToken == "" {
		return nil, fmt.Errorf("AUDD_API_TOKEN not set")
	}
	return c, nil
}

func (c *Client) RecognizeOnce(ctx context.Context, input recognition.Input) (recognition.Result, error) {
	ctx, span := tracer.Start(ctx, "recognize once")
	defer span.End()

	if input.Format.Format != audio.EncodingLinear16 {
		return recognition.Result{}, recognition.ErrUnsupportedFormat
	}

	for attempt := range c.maxAttempts {
		span.SetAttributes(attribute.Int("recognition.attempt", attempt+1))
		result, err := c.recognizeWindow(ctx, input)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, recognition.ErrNoMatchFound):
			continue
		case errors.Is(err, errInputEnded):
			return recognition.Result{}, recognition.ErrNoMatchFound
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return recognition.Result{}, err
		}
	}
	return recognition.Result{}, recognition.ErrNoMatchFound
}

func (c *Client) StartContinuous(ctx context.Context, input recognition.Input, onMatch func(recognition.Result)) error {
	if input.Format.Format != audio.EncodingLinear16 {
		return recognition.ErrUnsupportedFormat
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return recognition.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done

	go func() {
		defer close(done)
		defer c.finish(done)

		for {
			result, err := c.recognizeWindow(runCtx, input)
			switch {
			case err == nil:
				onMatch(result)
			case errors.Is(err, recognition.ErrNoMatchFound):
			case errors.Is(err, errInputEnded), runCtx.Err() != nil:
				return
			default:
				logger.WarnContext(runCtx, "continuous recognition attempt failed", "error", err)
			}
		}
	}()
	return nil
}

func (c *Client) StopContinuous(ctx context.Context) {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (c *Client) finish(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == done {
		c.cancel()
		c.cancel, c.done = nil, nil
	}
}

// recognizeWindow collects one window of audio and uploads it.
func (c *Client) recognizeWindow(ctx context.Context, input recognition.Input) (recognition.Result, error) {
	pcm, ended, err := collect(ctx, input, c.window)
	if err != nil {
		return recognition.Result{}, err
	}
	if len(pcm) == 0 && ended {
		return recognition.Result{}, errInputEnded
	}

	wav, err := encodeWAV(pcm, input.Format)
	if err != nil {
		return recognition.Result{}, err
	}
	result, err := c.upload(ctx, wav)
	if err != nil {
		return recognition.Result{}, err
	}
	if ended && result == nil {
		return recognition.Result{}, errInputEnded
	}
	if result == nil {
		return recognition.Result{}, recognition.ErrNoMatchFound
	}
	return *result, nil
}

func collect(ctx context.Context, input recognition.Input, window time.Duration) (pcm []byte, ended bool, err error) {
	var collected time.Duration
	for collected < window {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case frame, ok := <-input.Frames:
			if !ok {
				return pcm, true, nil
			}
			pcm = append(pcm, frame.PCM...)
			collected += frame.Duration(input.Format)
		}
	}
	return pcm, false, nil
}

type response struct {
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_message"`
	} `json:"error"`
	Result *struct {
		Artist     string `json:"artist"`
		Title      string `json:"title"`
		Album      string `json:"album"`
		SongLink   string `json:"song_link"`
		AppleMusic *struct {
			URL        string `json:"url"`
			PlayParams *struct {
				ID string `json:"id"`
			} `json:"playParams"`
			Artwork *struct {
				URL string `json:"url"`
			} `json:"artwork"`
		} `json:"apple_music"`
	} `json:"result"`
}

// upload returns nil without error when the service found no match.
func (c *Client) upload(ctx context.Context, wav []byte) (*recognition.Result, error) {
	ctx, span := tracer.Start(ctx, "upload snippet")
	defer span.End()
	span.SetAttributes(attribute.Int("request.bytes", len(wav)))

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("api_token", c.apiToken); err != nil {
		return nil, fmt.Errorf("error writing form: %w", err)
	}
	if err := form.WriteField("return", "apple_music"); err != nil {
		return nil, fmt.Errorf("error writing form: %w", err)
	}
	part, err := form.CreateFormFile("file", "snippet.wav")
	if err != nil {
		return nil, fmt.Errorf("error writing form: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("error writing form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("error writing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetAttributes(attribute.String("response.error", string(errorBody)))
		return nil, err
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}
	if decoded.Status != "success" {
		if decoded.Error != nil {
			return nil, fmt.Errorf("recognition service error %d: %s", decoded.Error.Code, decoded.Error.Message)
		}
		return nil, fmt.Errorf("recognition service status %q", decoded.Status)
	}
	if decoded.Result == nil {
		return nil, nil
	}

	result := &recognition.Result{
		Title:     decoded.Result.Title,
		Artist:    decoded.Result.Artist,
		Album:     decoded.Result.Album,
		Link:      decoded.Result.SongLink,
		MatchedAt: c.now(),
	}
	if am := decoded.Result.AppleMusic; am != nil {
		if am.PlayParams != nil {
			result.CatalogID = am.PlayParams.ID
		}
		if am.Artwork != nil {
			result.ArtworkURL = am.Artwork.URL
		}
		if result.Link == "" {
			result.Link = am.URL
		}
	}
	return result, nil
}
