package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFallbackVoice = "af_heart"
	DefaultFallbackLang  = "a"
)

type Voice struct {
	ID      string `json:"id" yaml:"id" toml:"id"`
	Lang    string `json:"lang" yaml:"lang" toml:"lang"`
	Gender  string `json:"gender,omitempty" yaml:"gender,omitempty" toml:"gender,omitempty"`
	Display string `json:"display,omitempty" yaml:"display,omitempty" toml:"display,omitempty"`
}

type catalogFile struct {
	Voices  []Voice           `json:"voices" yaml:"voices" toml:"voices"`
	Aliases map[string]string `json:"aliases" yaml:"aliases" toml:"aliases"`
}

// VoiceChoice is the outcome of resolving a requested voice.
type VoiceChoice struct {
	ID   string
	Lang string
	// Fallback is set when the request matched nothing and the fallback
	// voice was substituted.
	Fallback bool
}

// VoiceCatalog holds the known voices and their aliases.
type VoiceCatalog struct {
	voices        []Voice
	byID          map[string]Voice
	aliases       map[string]string
	fallbackVoice string
	fallbackLang  string
}

// DefaultVoices is the catalog used when no catalog file exists.
func DefaultVoices() *VoiceCatalog {
	c, _ := newVoiceCatalog(catalogFile{
		Voices: []Voice{
			{ID: "af_heart", Lang: "a", Gender: "female", Display: "Heart (American Female)"},
			{ID: "af_bella", Lang: "a", Gender: "female", Display: "Bella (American Female)"},
			{ID: "am_michael", Lang: "a", Gender: "male", Display: "Michael (American Male)"},
			{ID: "bf_emma", Lang: "b", Gender: "female", Display: "Emma (British Female)"},
			{ID: "bm_george", Lang: "b", Gender: "male", Display: "George (British Male)"},
		},
		Aliases: map[string]string{
			"en":       "af_heart",
			"en-us":    "af_heart",
			"american": "af_heart",
			"en-gb":    "bf_emma",
			"british":  "bf_emma",
		},
	})

	return c
}

// LoadVoiceCatalog reads a catalog file. The decoder is picked from the
// extension: .yaml/.yml, .toml, anything else is JSON.
func LoadVoiceCatalog(path string) (*VoiceCatalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice catalog: %w", err)
	}

	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode voice catalog: %w", err)
	}

	return newVoiceCatalog(file)
}

// OpenVoiceCatalog loads path, or returns DefaultVoices when the file does
// not exist.
func OpenVoiceCatalog(path string) (*VoiceCatalog, error) {
	if path == "" {
		return DefaultVoices(), nil
	}

	c, err := LoadVoiceCatalog(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultVoices(), nil
	}

	return c, err
}

func newVoiceCatalog(file catalogFile) (*VoiceCatalog, error) {
	c := &VoiceCatalog{
		voices:        append([]Voice(nil), file.Voices...),
		byID:          make(map[string]Voice, len(file.Voices)),
		aliases:       make(map[string]string, len(file.Aliases)),
		fallbackVoice: DefaultFallbackVoice,
		fallbackLang:  DefaultFallbackLang,
	}

	for i, v := range c.voices {
		if v.ID == "" {
			return nil, errors.New("voice catalog contains empty id")
		}

		key := strings.ToLower(v.ID)
		if _, exists := c.byID[key]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		if v.Lang == "" {
			v.Lang = DefaultFallbackLang
			c.voices[i] = v
		}
		c.byID[key] = v
	}

	for alias, target := range file.Aliases {
		c.aliases[strings.ToLower(strings.TrimSpace(alias))] = target
	}

	return c, nil
}

// SetFallback overrides the voice used when a request matches nothing.
func (c *VoiceCatalog) SetFallback(id, lang string) {
	if id != "" {
		c.fallbackVoice = id
	}
	if lang != "" {
		c.fallbackLang = lang
	}
}

func (c *VoiceCatalog) ListVoices() []Voice {
	return append([]Voice(nil), c.voices...)
}

// Aliases returns a copy of the alias table.
func (c *VoiceCatalog) Aliases() map[string]string {
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}

	return out
}

// AliasNames returns the alias keys in sorted order.
func (c *VoiceCatalog) AliasNames() []string {
	names := make([]string, 0, len(c.aliases))
	for k := range c.aliases {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}

// Resolve maps a voice id or alias to a concrete voice and language.
// Lookup is case-insensitive. An id that is not in the catalog but looks
// like "<lang><gender>_<name>" is passed through with its first letter as
// the language. Everything else resolves to the fallback voice.
func (c *VoiceCatalog) Resolve(requested string) VoiceChoice {
	req := strings.ToLower(strings.TrimSpace(requested))

	id := strings.TrimSpace(requested)
	if target, ok := c.aliases[req]; ok {
		id = target
	}

	if v, ok := c.byID[strings.ToLower(id)]; ok {
		return VoiceChoice{ID: v.ID, Lang: v.Lang}
	}

	if strings.Contains(id, "_") {
		return VoiceChoice{ID: id, Lang: strings.ToLower(id[:1])}
	}

	return VoiceChoice{ID: c.fallbackVoice, Lang: c.fallbackLang, Fallback: true}
}
