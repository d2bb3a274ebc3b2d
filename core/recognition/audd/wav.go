package audd

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/koscakluka/justplayit/core/audio"
	"github.com/spf13/afero"
)

const wavPCMFormat = 1

// snippets holds the WAV files while they are written, since the encoder
// needs to seek back and patch the header sizes.
var snippets = afero.NewMemMapFs()

func encodeWAV(pcm []byte, format audio.EncodingInfo) ([]byte, error) {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	file, err := afero.TempFile(snippets, "", "snippet-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create snippet: %w", err)
	}
	defer snippets.Remove(file.Name())
	defer file.Close()

	encoder := wav.NewEncoder(file, format.SampleRate, 16, format.Channels, wavPCMFormat)
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buffer); err != nil {
		return nil, fmt.Errorf("failed to encode snippet: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish snippet: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind snippet: %w", err)
	}
	return io.ReadAll(file)
}
