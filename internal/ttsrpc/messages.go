// Package ttsrpc defines the tts.v1.TTS gRPC contract: message types, a JSON
// codec, the service descriptor and a typed client.
package ttsrpc

// SynthesizeRequest asks the server to synthesize text into one WAV stream.
type SynthesizeRequest struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voice,omitempty"`
	SampleRateHz int32   `json:"sample_rate_hz,omitempty"`
	Speed        float32 `json:"speed,omitempty"`
}

// AudioChunk carries consecutive bytes of the WAV response.
type AudioChunk struct {
	Audio []byte `json:"audio"`
}

// GetAudio returns the chunk payload, tolerating a nil receiver.
func (c *AudioChunk) GetAudio() []byte {
	if c == nil {
		return nil
	}
	return c.Audio
}

type ListVoicesRequest struct{}

type VoiceInfo struct {
	ID       string `json:"id"`
	LangCode string `json:"lang_code"`
	Gender   string `json:"gender,omitempty"`
	Display  string `json:"display,omitempty"`
}

// AliasInfo maps a shorthand voice name to a catalog voice id.
type AliasInfo struct {
	Alias  string `json:"alias"`
	MapsTo string `json:"maps_to"`
}

type ListVoicesResponse struct {
	Voices  []VoiceInfo `json:"voices"`
	Aliases []AliasInfo `json:"aliases"`
}
