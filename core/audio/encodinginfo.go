package audio

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"

	// FallbackSampleRate is used when a capture device reports an unusable
	// format (zero sample rate or channel count).
	FallbackSampleRate = 44100
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: encodingFormat(DefaultFormat)}
}

// GetFallbackEncodingInfo returns the mono 44.1kHz linear16 format that
// replaces device formats reporting zero sample rate or channels.
func GetFallbackEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: FallbackSampleRate, Channels: 1, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Channels == 0 || e.Format.Name() == ""
}

// OrFallback replaces an unusable format with the fallback capture format.
// A missing encoding name alone is treated as linear16.
func (e EncodingInfo) OrFallback() EncodingInfo {
	if e.SampleRate <= 0 || e.Channels <= 0 {
		return GetFallbackEncodingInfo()
	}
	if e.Format.Name() == "" {
		e.Format = EncodingLinear16
	}
	return e
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case encodingFormat("alaw"):
		return 0x55
	case encodingFormat("mulaw"):
		return 0xFF
	case encodingFormat("linear16"):
		return 0
	}

	return 0
}

// BytesPerFrame is the size of one sample across all channels, or -1 for
// unknown encodings.
func (e EncodingInfo) BytesPerFrame() int {
	size := e.Format.ByteSize()
	if size < 0 {
		return -1
	}
	return size * max(e.Channels, 1)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case encodingFormat("mulaw"), encodingFormat("alaw"):
		return 1
	case encodingFormat("linear16"):
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// ParseEncodingFormat maps an encoding name onto a known format. Unknown
// names are kept as-is so callers can reject them via ByteSize.
func ParseEncodingFormat(name string) encodingFormat {
	return encodingFormat(name)
}
