// Package miniaudio provides a microphone capture device backed by
// miniaudio through malgo.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/justplayit/core/audio"
)

type Client struct {
	// audioContext is kept so Close can release it after the device.
	audioContext *malgo.AllocatedContext
	capture      captureDevice

	sampleRate int
	channels   int
}

type ClientOption func(*Client)

func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) { c.sampleRate = sampleRate }
}

func WithChannels(channels int) ClientOption {
	return func(c *Client) { c.channels = channels }
}

// NewClient opens the default capture device. A zero sample rate or channel
// count opens the device in the fallback capture format.
func NewClient(opts ...ClientOption) (*Client, error) {
	client := Client{
		sampleRate: audio.DefaultSampleRate,
		channels:   audio.DefaultChannels,
	}
	for _, opt := range opts {
		opt(&client)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("miniaudio", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioCtx

	if err := client.capture.init(audioCtx, client.EncodingInfo()); err != nil {
		client.Close()
		return nil, err
	}
	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.capture.start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.stop()
}

func (c *Client) Close() {
	c.capture.uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		Format:     audio.EncodingLinear16,
	}.OrFallback()
}
