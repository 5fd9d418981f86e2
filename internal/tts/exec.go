package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

const (
	SampleFormatS16LE = "s16le"
	SampleFormatF32LE = "f32le"

	maxExecLine = 64 << 20
)

// ExecEngine runs an engine subprocess per call. The process reads one JSON
// request from stdin and writes one JSON line per audio buffer to stdout.
type ExecEngine struct {
	args       []string
	lang       string
	sampleRate int
	logger     *slog.Logger
	mu         sync.Mutex
}

type execRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Speed      float64 `json:"speed"`
	Lang       string  `json:"lang"`
	SampleRate int     `json:"sample_rate,omitempty"`
}

type execResponse struct {
	PCMBase64    string `json:"pcm_base64"`
	SampleFormat string `json:"sample_format,omitempty"`
	Final        bool   `json:"final"`
	Error        string `json:"error,omitempty"`
}

// ExecOption configures an ExecEngine.
type ExecOption func(*ExecEngine)

func WithExecLogger(l *slog.Logger) ExecOption {
	return func(e *ExecEngine) { e.logger = l }
}

func WithExecSampleRate(rate int) ExecOption {
	return func(e *ExecEngine) { e.sampleRate = rate }
}

// ParseCommand splits a shell-style command line into arguments.
func ParseCommand(command string) ([]string, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("engine command empty")
	}

	return args, nil
}

func NewExecEngine(args []string, lang string, opts ...ExecOption) *ExecEngine {
	e := &ExecEngine{
		args:   append([]string(nil), args...),
		lang:   lang,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}

	return e
}

func (e *ExecEngine) Synthesize(ctx context.Context, text, voice string, speed float64) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      voice,
		Speed:      speed,
		Lang:       e.lang,
		SampleRate: e.sampleRate,
	})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.args[0], e.args[1:]...)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	buffers, readErr := readExecResponses(stdout)
	// Drain so the process never blocks on a full pipe before Wait.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if readErr != nil {
		return nil, readErr
	}
	if waitErr != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("engine exited: %w: %s", waitErr, msg)
		}
		return nil, fmt.Errorf("engine exited: %w", waitErr)
	}

	e.logger.Debug("engine call finished",
		slog.String("lang", e.lang),
		slog.String("voice", voice),
		slog.Int("buffers", len(buffers)),
	)

	return buffers, nil
}

func readExecResponses(r io.Reader) ([][]float32, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxExecLine)

	var buffers [][]float32
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("decode engine response: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("engine: %s", resp.Error)
		}

		if resp.PCMBase64 != "" {
			raw, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
			if err != nil {
				return nil, fmt.Errorf("decode engine pcm: %w", err)
			}
			samples, err := DecodePCM(raw, resp.SampleFormat)
			if err != nil {
				return nil, err
			}
			buffers = append(buffers, samples)
		}

		if resp.Final {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}

	return buffers, nil
}

// DecodePCM converts little-endian PCM bytes to normalized samples.
// An empty format means s16le.
func DecodePCM(raw []byte, format string) ([]float32, error) {
	switch strings.ToLower(format) {
	case "", SampleFormatS16LE:
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("s16le payload has odd length %d", len(raw))
		}
		out := make([]float32, len(raw)/2)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
		}
		return out, nil
	case SampleFormatF32LE:
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("f32le payload length %d is not a multiple of 4", len(raw))
		}
		out := make([]float32, len(raw)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported sample format %q", format)
	}
}
