package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// DecodeWAV decodes WAV bytes into normalized mono samples and reports the
// source format. Multi-channel input is downmixed by averaging.
func DecodeWAV(data []byte) ([]float32, Format, error) {
	if len(data) == 0 {
		return nil, Format{}, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, Format{}, ErrInvalidContainer
	}

	format := Format{
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
		SampleRate:    int(dec.SampleRate),
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return downmix(buf, format.Channels), format, nil
}

func downmix(buf *goaudio.Float32Buffer, channels int) []float32 {
	interleaved := buf.Data
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}

	return out
}
