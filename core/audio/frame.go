package audio

import "time"

// Frame is one captured PCM buffer. The consumer that receives a frame owns
// it; it is never shared between consumers.
type Frame struct {
	PCM        []byte
	CapturedAt time.Time
}

// Duration reports how much audio the frame holds for the given format.
func (f Frame) Duration(encoding EncodingInfo) time.Duration {
	bytesPerFrame := encoding.BytesPerFrame()
	if bytesPerFrame <= 0 || encoding.SampleRate <= 0 {
		return 0
	}

	samples := len(f.PCM) / bytesPerFrame
	return time.Duration(samples) * time.Second / time.Duration(encoding.SampleRate)
}
