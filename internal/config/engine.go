package config

import (
	"fmt"
	"strings"
)

const (
	EngineExec      = "exec"
	EnginePocketTTS = "pockettts"
	EngineRemote    = "remote"
)

func NormalizeEngine(raw string) (string, error) {
	engine := strings.ToLower(strings.TrimSpace(raw))
	if engine == "" {
		engine = EngineExec
	}
	switch engine {
	case EngineExec, EnginePocketTTS, EngineRemote:
		return engine, nil
	case "pocket-tts", "pocket":
		return EnginePocketTTS, nil
	case "grpc":
		return EngineRemote, nil
	default:
		return "", fmt.Errorf(
			"invalid engine %q (expected %s|%s|%s)",
			raw,
			EngineExec,
			EnginePocketTTS,
			EngineRemote,
		)
	}
}
