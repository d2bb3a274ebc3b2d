// Package applemusic searches the Apple Music catalog with a developer token.
package applemusic

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/koscakluka/justplayit/core/music"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL     = "https://api.music.apple.com"
	defaultStorefront  = "us"
	defaultSearchLimit = 5
	artworkSize        = "300"

	tokenLifetime = time.Hour
	tokenRefresh  = 5 * time.Minute
)

var (
	ErrMissingCredentials = errors.New("applemusic: missing credentials")
	ErrNoPlayer           = errors.New("applemusic: no player configured")
)

type Client struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey

	baseURL     string
	storefront  string
	searchLimit int
	httpClient  *http.Client
	player      music.Player
	now         func() time.Time

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

type ClientOption func(*Client)

func WithStorefront(storefront string) ClientOption {
	return func(c *Client) {
		if storefront != "" {
			c.storefront = storefront
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithSearchLimit(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.searchLimit = limit
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

// WithPlayer sets where Play hands the matched track.
func WithPlayer(player music.Player) ClientOption {
	return func(c *Client) { c.player = player }
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(teamID, keyID string, privateKeyPEM []byte, opts ...ClientOption) (*Client, error) {
	if teamID == "" || keyID == "" || len(privateKeyPEM) == 0 {
		return nil, ErrMissingCredentials
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	c := &Client{
		teamID:      teamID,
		keyID:       keyID,
		key:         key,
		baseURL:     defaultBaseURL,
		storefront:  defaultStorefront,
		searchLimit: defaultSearchLimit,
		httpClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromEnv reads APPLE_MUSIC_TEAM_ID, APPLE_MUSIC_KEY_ID and
// APPLE_MUSIC_PRIVATE_KEY.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	return NewClient(
		os.Getenv("APPLE_MUSIC_TEAM_ID"),
		os.Getenv("APPLE_MUSIC_KEY_ID"),
		[]byte(os.Getenv("APPLE_MUSIC_PRIVATE_KEY")),
		opts...,
	)
}

// DeveloperToken returns a signed ES256 token, reusing the previous one
// until it is close to expiry.
func (c *Client) DeveloperToken() (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := c.now()
	if c.token != "" && now.Add(tokenRefresh).Before(c.tokenExpiry) {
		return c.token, nil
	}

	expiry := now.Add(tokenLifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": c.teamID,
		"iat": now.Unix(),
		"exp": expiry.Unix(),
	})
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign developer token: %w", err)
	}
	c.token = signed
	c.tokenExpiry = expiry
	return signed, nil
}

// Search returns catalog songs for query in relevance order.
func (c *Client) Search(ctx context.Context, query string) ([]music.Track, error) {
	ctx, span := tracer.Start(ctx, "search catalog")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	tracks, err := c.search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.results", len(tracks)))
	return tracks, nil
}

func (c *Client) search(ctx context.Context, query string) ([]music.Track, error) {
	token, err := c.DeveloperToken()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("term", query)
	params.Set("types", "songs")
	params.Set("limit", strconv.Itoa(c.searchLimit))
	reqURL := fmt.Sprintf("%s/v1/catalog/%s/search?%s", c.baseURL, url.PathEscape(c.storefront), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.WarnContext(ctx, "catalog search failed", "status", resp.Status, "body", string(errorBody))
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var response searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}

	tracks := make([]music.Track, 0, len(response.Results.Songs.Data))
	for _, song := range response.Results.Songs.Data {
		tracks = append(tracks, song.toTrack())
	}
	return tracks, nil
}

// Play searches for "<title> <artist>" and hands the first song to the
// configured player.
func (c *Client) Play(ctx context.Context, artist, title string) (music.Track, error) {
	ctx, span := tracer.Start(ctx, "play from catalog")
	defer span.End()

	track, err := c.play(ctx, artist, title)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return music.Track{}, err
	}
	span.SetAttributes(attribute.String("track.id", track.ID))
	return track, nil
}

func (c *Client) play(ctx context.Context, artist, title string) (music.Track, error) {
	if c.player == nil {
		return music.Track{}, ErrNoPlayer
	}

	term := strings.TrimSpace(title + " " + artist)
	tracks, err := c.search(ctx, term)
	if err != nil {
		return music.Track{}, err
	}
	if len(tracks) == 0 {
		return music.Track{}, fmt.Errorf("%w: %q", music.ErrTrackNotFound, term)
	}

	track := tracks[0]
	if err := c.player.PlayTrack(ctx, track); err != nil {
		return music.Track{}, fmt.Errorf("failed to start track: %w", err)
	}
	logger.InfoContext(ctx, "playing track", "id", track.ID, "title", track.Title, "artist", track.Artist)
	return track, nil
}

type searchResponse struct {
	Results struct {
		Songs struct {
			Data []song `json:"data"`
		} `json:"songs"`
	} `json:"results"`
}

type song struct {
	ID         string `json:"id"`
	Attributes struct {
		Name             string `json:"name"`
		ArtistName       string `json:"artistName"`
		AlbumName        string `json:"albumName"`
		DurationInMillis int64  `json:"durationInMillis"`
		ContentRating    string `json:"contentRating"`
		Artwork          struct {
			URL string `json:"url"`
		} `json:"artwork"`
		Previews []struct {
			URL string `json:"url"`
		} `json:"previews"`
	} `json:"attributes"`
}

func (s song) toTrack() music.Track {
	track := music.Track{
		ID:         s.ID,
		Title:      s.Attributes.Name,
		Artist:     s.Attributes.ArtistName,
		Album:      s.Attributes.AlbumName,
		Duration:   time.Duration(s.Attributes.DurationInMillis) * time.Millisecond,
		IsExplicit: s.Attributes.ContentRating == "explicit",
		ArtworkURL: strings.NewReplacer("{w}", artworkSize, "{h}", artworkSize).Replace(s.Attributes.Artwork.URL),
	}
	if len(s.Attributes.Previews) > 0 {
		track.PreviewURL = s.Attributes.Previews[0].URL
	}
	return track
}
