package audd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/koscakluka/justplayit/core/audio"
	"github.com/koscakluka/justplayit/core/recognition"
)

const matchResponse = `{"status":"success","result":{"artist":"The Beatles","title":"Blackbird","album":"The Beatles","song_link":"https://lis.tn/x","apple_music":{"url":"https://music.apple.com/x","playParams":{"id":"1441133197"},"artwork":{"url":"https://img/{w}x{h}.jpg"}}}}`

const noMatchResponse = `{"status":"success","result":null}`

func TestRecognizeOnceUploadsWAVAndMapsMatch(t *testing.T) {
	var uploaded []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("api_token"); got != "token" {
			t.Errorf("expected api token, got %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected file upload, got %v", err)
		} else {
			uploaded, _ = io.ReadAll(file)
		}
		_, _ = w.Write([]byte(matchResponse))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	input := newInput(10)

	result, err := client.RecognizeOnce(context.Background(), input)
	if err != nil {
		t.Fatalf("expected a match, got %v", err)
	}

	if result.Title != "Blackbird" || result.CatalogID != "1441133197" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Key() != "am:1441133197" {
		t.Fatalf("expected catalog key, got %q", result.Key())
	}

	decoder := wav.NewDecoder(bytes.NewReader(uploaded))
	if !decoder.IsValidFile() {
		t.Fatalf("expected a valid WAV upload")
	}
	if decoder.SampleRate != uint32(audio.DefaultSampleRate) || decoder.NumChans != 1 {
		t.Fatalf("expected 16kHz mono WAV, got %d Hz with %d channels", decoder.SampleRate, decoder.NumChans)
	}
}

func TestRecognizeOnceGivesUpAfterMaxAttempts(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		_, _ = w.Write([]byte(noMatchResponse))
	}))
	defer server.Close()

	client := newTestClient(t, server, WithMaxAttempts(2))

	if _, err := client.RecognizeOnce(context.Background(), newInput(10)); !errors.Is(err, recognition.ErrNoMatchFound) {
		t.Fatalf("expected ErrNoMatchFound, got %v", err)
	}
	if got := uploads.Load(); got != 2 {
		t.Fatalf("expected 2 uploads, got %d", got)
	}
}

func TestRecognizeOnceEndsWithInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(noMatchResponse))
	}))
	defer server.Close()

	client := newTestClient(t, server, WithMaxAttempts(10))

	if _, err := client.RecognizeOnce(context.Background(), newInput(1)); !errors.Is(err, recognition.ErrNoMatchFound) {
		t.Fatalf("expected ErrNoMatchFound once input ended, got %v", err)
	}
}

func TestRecognizeOnceRejectsCompressedAudio(t *testing.T) {
	client := newTestClient(t, httptest.NewServer(http.NotFoundHandler()))
	input := recognition.Input{Format: audio.EncodingInfo{SampleRate: 8000, Channels: 1, Format: audio.EncodingMulaw}}

	if _, err := client.RecognizeOnce(context.Background(), input); !errors.Is(err, recognition.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestContinuousReportsMatchesUntilStopped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(matchResponse))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	frames := make(chan audio.Frame)
	input := recognition.Input{Frames: frames, Format: audio.GetDefaultEncodingInfo()}

	var matches atomic.Int32
	if err := client.StartContinuous(context.Background(), input, func(recognition.Result) { matches.Add(1) }); err != nil {
		t.Fatalf("expected continuous recognition to start, got %v", err)
	}
	if err := client.StartContinuous(context.Background(), input, func(recognition.Result) {}); !errors.Is(err, recognition.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	go func() {
		for range 4 {
			frames <- testFrame()
		}
	}()
	waitUntil(t, func() bool { return matches.Load() >= 2 })

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client.StopContinuous(stopCtx)
	client.StopContinuous(stopCtx)

	if err := client.StartContinuous(context.Background(), input, func(recognition.Result) {}); err != nil {
		t.Fatalf("expected restart after stop to succeed, got %v", err)
	}
	client.StopContinuous(stopCtx)
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Setenv("AUDD_API_TOKEN", "")

	if _, err := NewClient(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestEncodeWAVKeepsSamples(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}

	encoded, err := encodeWAV(pcm, audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected encoding to succeed, got %v", err)
	}

	decoder := wav.NewDecoder(bytes.NewReader(encoded))
	buffer := &goaudio.IntBuffer{Data: make([]int, 3)}
	n, err := decoder.PCMBuffer(buffer)
	if err != nil {
		t.Fatalf("expected decoding to succeed, got %v", err)
	}
	expected := []int{1, -1, -32768}
	if n != 3 {
		t.Fatalf("expected 3 samples, got %d", n)
	}
	for i := range expected {
		if buffer.Data[i] != expected[i] {
			t.Fatalf("expected samples %v, got %v", expected, buffer.Data[:n])
		}
	}
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...ClientOption) *Client {
	t.Helper()
	t.Cleanup(server.Close)
	opts = append([]ClientOption{
		WithAPIToken("token"),
		WithURL(server.URL),
		WithHTTPClient(server.Client()),
		WithWindow(100 * time.Millisecond),
	}, opts...)
	client, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("expected client to build, got %v", err)
	}
	return client
}

// testFrame holds 100ms of 16kHz mono silence.
func testFrame() audio.Frame {
	return audio.Frame{PCM: make([]byte, 3200), CapturedAt: time.Now()}
}

func newInput(frameCount int) recognition.Input {
	frames := make(chan audio.Frame, frameCount)
	for range frameCount {
		frames <- testFrame()
	}
	close(frames)
	return recognition.Input{Frames: frames, Format: audio.GetDefaultEncodingInfo()}
}

func waitUntil(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
