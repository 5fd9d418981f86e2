package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// DefaultSampleRate is the engine output rate assumed when none is configured.
const DefaultSampleRate = 24000

const (
	headerSize   = 44
	pcmFormatTag = 1
)

// Format is the (channels, bit depth, sample rate) tuple that decides whether
// two containers can be joined.
type Format struct {
	Channels      int
	BitsPerSample int
	SampleRate    int
}

// MonoPCM16 returns the format written by EncodeWAVPCM16.
func MonoPCM16(sampleRate int) Format {
	return Format{Channels: 1, BitsPerSample: 16, SampleRate: sampleRate}
}

// BlockAlign returns the size of one frame in bytes.
func (f Format) BlockAlign() int { return f.Channels * f.BitsPerSample / 8 }

// ByteRate returns the number of bytes per second of audio.
func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

func (f Format) String() string {
	return fmt.Sprintf("%dch/%dbit/%dHz", f.Channels, f.BitsPerSample, f.SampleRate)
}

// Quantize maps a normalized sample to a signed 16-bit value. Input outside
// [-1, 1] is clamped.
func Quantize(s float32) int16 {
	clamped := math.Max(-1.0, math.Min(1.0, float64(s)))
	return int16(math.Round(clamped * 32767))
}

// EncodeWAVPCM16 encodes normalized mono samples as a 16-bit PCM WAV
// container with the canonical 44-byte header.
func EncodeWAVPCM16(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate < 1 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	format := MonoPCM16(sampleRate)
	out := make([]byte, headerSize+len(samples)*2)
	putHeader(out[:headerSize], format, len(samples)*2)
	putPCM16(out[headerSize:], samples)

	return out, nil
}

// WriteWAVFile encodes samples and writes them to path, creating parent
// directories as needed.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	data, err := EncodeWAVPCM16(samples, sampleRate)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write wav %s: %w", path, err)
	}

	return nil
}

// WriteHeader writes a canonical 44-byte header for dataLen bytes of audio.
func WriteHeader(w io.Writer, format Format, dataLen int) (int, error) {
	var hdr [headerSize]byte
	putHeader(hdr[:], format, dataLen)

	return w.Write(hdr[:])
}

func putHeader(hdr []byte, format Format, dataLen int) {
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(headerSize-8+dataLen))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], pcmFormatTag)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(format.ByteRate()))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(format.BlockAlign()))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(format.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataLen))
}

func putPCM16(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(Quantize(s)))
	}
}
