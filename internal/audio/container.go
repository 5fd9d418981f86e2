package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrFormatMismatch is returned when containers with different formats
	// are joined.
	ErrFormatMismatch = errors.New("WAV format mismatch")

	// ErrInvalidContainer is returned for input that is not a PCM WAV container.
	ErrInvalidContainer = errors.New("invalid WAV container")

	// ErrNothingToConcatenate is returned when Concatenate gets no input.
	ErrNothingToConcatenate = errors.New("no containers to concatenate")
)

// ConcatError reports the first container whose format differs from the
// first one.
type ConcatError struct {
	Index int
	Name  string
	Want  Format
	Got   Format
}

func (e *ConcatError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("container %d", e.Index)
	}

	return fmt.Sprintf("%s: %v: got %s, want %s", name, ErrFormatMismatch, e.Got, e.Want)
}

func (e *ConcatError) Unwrap() error { return ErrFormatMismatch }

// Container is a parsed WAV file. Data aliases the parsed input.
type Container struct {
	Format Format
	Data   []byte
}

// Frames returns the number of audio frames in the container.
func (c Container) Frames() int {
	if ba := c.Format.BlockAlign(); ba > 0 {
		return len(c.Data) / ba
	}
	return 0
}

// ParseContainer reads the fmt and data chunks of a RIFF/WAVE file.
// Unknown chunks are skipped. A data length that runs past the end of the
// input, as written by streaming encoders, is clamped to what is present.
func ParseContainer(data []byte) (Container, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Container{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidContainer)
	}

	var (
		c       Container
		haveFmt bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Container{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidContainer)
			}
			if tag := binary.LittleEndian.Uint16(data[body:]); tag != pcmFormatTag {
				return Container{}, fmt.Errorf("%w: unsupported format tag %d", ErrInvalidContainer, tag)
			}
			c.Format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2:])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4:])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			if c.Format.BlockAlign() == 0 {
				return Container{}, fmt.Errorf("%w: zero block size", ErrInvalidContainer)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Container{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidContainer)
			}
			end := body + size
			if size < 0 || end > len(data) {
				end = len(data)
			}
			c.Data = data[body:end]
			return c, nil
		}

		pos = body + size + size%2
		if pos < body {
			break
		}
	}

	return Container{}, fmt.Errorf("%w: no data chunk", ErrInvalidContainer)
}

// Concatenate joins containers in order. The first container's format is
// canonical and every later one must match it exactly. Inputs are never
// modified; the result is a new container whose header carries the summed
// data length.
func Concatenate(containers ...[]byte) ([]byte, error) {
	return concat(containers, nil)
}

// ConcatenateFiles joins the WAV files at paths in order and writes the
// result to out. A format mismatch names the offending path.
func ConcatenateFiles(paths []string, out string) error {
	blobs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read part: %w", err)
		}
		blobs = append(blobs, b)
	}

	joined, err := concat(blobs, paths)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := os.WriteFile(out, joined, 0o644); err != nil {
		return fmt.Errorf("write wav %s: %w", out, err)
	}

	return nil
}

func concat(blobs [][]byte, names []string) ([]byte, error) {
	if len(blobs) == 0 {
		return nil, ErrNothingToConcatenate
	}

	nameOf := func(i int) string {
		if i < len(names) {
			return names[i]
		}
		return ""
	}

	parsed := make([]Container, len(blobs))
	total := 0
	for i, b := range blobs {
		c, err := ParseContainer(b)
		if err != nil {
			if n := nameOf(i); n != "" {
				return nil, fmt.Errorf("%s: %w", n, err)
			}
			return nil, fmt.Errorf("container %d: %w", i, err)
		}

		if i > 0 && c.Format != parsed[0].Format {
			return nil, &ConcatError{Index: i, Name: nameOf(i), Want: parsed[0].Format, Got: c.Format}
		}

		parsed[i] = c
		total += len(c.Data)
	}

	out := make([]byte, headerSize, headerSize+total)
	putHeader(out, parsed[0].Format, total)
	for _, c := range parsed {
		out = append(out, c.Data...)
	}

	return out, nil
}
