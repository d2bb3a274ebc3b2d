package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/justplayit/core/audio"
)

var errDeviceNotInitialized = errors.New("miniaudio: capture device not initialized")

const (
	periodSizeInFrames = 480
	periods            = 3
)

// captureDevice owns one malgo capture device delivering signed 16-bit
// samples.
type captureDevice struct {
	device *malgo.Device
	format audio.EncodingInfo

	// sink is read on the miniaudio thread, which must never wait on mu:
	// stop holds mu while miniaudio joins that thread.
	sink atomic.Pointer[func(pcm []byte)]
	// shortPeriods counts callbacks that carried fewer bytes than announced.
	shortPeriods atomic.Int64

	mu sync.Mutex
}

func (c *captureDevice) init(audioContext *malgo.AllocatedContext, format audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleFormat := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(sampleFormat) * format.Channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(format.SampleRate)
	config.Capture.Format = sampleFormat
	config.Capture.Channels = uint32(format.Channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = periodSizeInFrames
	config.Periods = periods

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 {
				return
			}
			if len(input) < n {
				c.shortPeriods.Add(1)
				return
			}
			if sink := c.sink.Load(); sink != nil {
				(*sink)(input[:n])
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.device = device
	c.format = format
	logger.Debug("capture device initialized",
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
	)
	return nil
}

func (c *captureDevice) start(sink func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	}
	if c.device.IsStarted() {
		return nil
	}

	c.sink.Store(&sink)
	if err := c.device.Start(); err != nil {
		c.sink.Store(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureDevice) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotInitialized
	}

	c.sink.Store(nil)
	if !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	if short := c.shortPeriods.Swap(0); short > 0 {
		logger.Warn("capture device delivered short periods", "count", short)
	}
	return nil
}

func (c *captureDevice) uninit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.sink.Store(nil)
}
