package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Paths     PathsConfig     `mapstructure:"paths"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Server    ServerConfig    `mapstructure:"server"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Publish   PublishConfig   `mapstructure:"publish"`
}

type PathsConfig struct {
	Catalog string `mapstructure:"catalog"`
	OutDir  string `mapstructure:"out_dir"`
}

type TTSConfig struct {
	Engine           string  `mapstructure:"engine"`
	Voice            string  `mapstructure:"voice"`
	FallbackVoice    string  `mapstructure:"fallback_voice"`
	FallbackLang     string  `mapstructure:"fallback_lang"`
	SampleRate       int     `mapstructure:"sample_rate"`
	Speed            float64 `mapstructure:"speed"`
	MaxChars         int     `mapstructure:"max_chars"`
	ExecCommand      string  `mapstructure:"exec_command"`
	PocketCLIPath    string  `mapstructure:"pocket_cli_path"`
	PocketConfigPath string  `mapstructure:"pocket_config_path"`
	RemoteAddr       string  `mapstructure:"remote_addr"`
	RemoteInsecure   bool    `mapstructure:"remote_insecure"`
	Quiet            bool    `mapstructure:"quiet"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	GRPCAddr        string `mapstructure:"grpc_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type EncoderConfig struct {
	LamePath   string `mapstructure:"lame_path"`
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

type TelemetryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	TraceExporter string `mapstructure:"trace_exporter"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	OTLPInsecure  bool   `mapstructure:"otlp_insecure"`
	ServiceName   string `mapstructure:"service_name"`
}

type PublishConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Bucket  string `mapstructure:"bucket"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		Paths: PathsConfig{
			Catalog: "voices/catalog.json",
			OutDir:  "out",
		},
		TTS: TTSConfig{
			Engine:        EngineExec,
			Voice:         "af_heart",
			FallbackVoice: "af_heart",
			FallbackLang:  "a",
			SampleRate:    24000,
			Speed:         1.0,
			MaxChars:      1800,
			ExecCommand:   "kokoro-jsonl",
			Quiet:         true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			GRPCAddr:        ":9090",
			Workers:         2,
			MaxTextBytes:    65536,
			RequestTimeout:  300,
			ShutdownTimeout: 30,
		},
		Encoder: EncoderConfig{
			LamePath:   "lame",
			FFmpegPath: "ffmpeg",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			TraceExporter: "none",
			OTLPEndpoint:  "localhost:4317",
			OTLPInsecure:  true,
			ServiceName:   "narrate",
		},
		Publish: PublishConfig{
			NATSURL: "nats://127.0.0.1:4222",
			Bucket:  "narrate-audio",
		},
	}
}

// flagKeys maps every registered flag to the config key it overrides.
var flagKeys = map[string]string{
	"log-level":               "log_level",
	"log-format":              "log_format",
	"paths-catalog":           "paths.catalog",
	"paths-out-dir":           "paths.out_dir",
	"engine":                  "tts.engine",
	"tts-voice":               "tts.voice",
	"tts-fallback-voice":      "tts.fallback_voice",
	"tts-fallback-lang":       "tts.fallback_lang",
	"tts-sample-rate":         "tts.sample_rate",
	"tts-speed":               "tts.speed",
	"tts-max-chars":           "tts.max_chars",
	"tts-exec-command":        "tts.exec_command",
	"tts-pocket-cli-path":     "tts.pocket_cli_path",
	"tts-pocket-config-path":  "tts.pocket_config_path",
	"tts-remote-addr":         "tts.remote_addr",
	"tts-remote-insecure":     "tts.remote_insecure",
	"tts-quiet":               "tts.quiet",
	"server-listen-addr":      "server.listen_addr",
	"server-grpc-addr":        "server.grpc_addr",
	"workers":                 "server.workers",
	"server-max-text-bytes":   "server.max_text_bytes",
	"server-request-timeout":  "server.request_timeout",
	"server-shutdown-timeout": "server.shutdown_timeout",
	"encoder-lame-path":       "encoder.lame_path",
	"encoder-ffmpeg-path":     "encoder.ffmpeg_path",
	"telemetry-enabled":       "telemetry.enabled",
	"telemetry-exporter":      "telemetry.trace_exporter",
	"telemetry-otlp-endpoint": "telemetry.otlp_endpoint",
	"telemetry-otlp-insecure": "telemetry.otlp_insecure",
	"telemetry-service-name":  "telemetry.service_name",
	"publish-nats-url":        "publish.nats_url",
	"publish-bucket":          "publish.bucket",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("log-format", defaults.LogFormat, "Log format (json|text)")
	fs.String("paths-catalog", defaults.Paths.Catalog, "Voice catalog file (json|yaml|toml); built-in voices when missing")
	fs.String("paths-out-dir", defaults.Paths.OutDir, "Root output directory")
	fs.String("engine", defaults.TTS.Engine, "Synthesis engine (exec|pockettts|remote)")
	fs.String("tts-voice", defaults.TTS.Voice, "Default voice id or alias")
	fs.String("tts-fallback-voice", defaults.TTS.FallbackVoice, "Voice used when a requested voice is unknown")
	fs.String("tts-fallback-lang", defaults.TTS.FallbackLang, "Language code of the fallback voice")
	fs.Int("tts-sample-rate", defaults.TTS.SampleRate, "Output sample rate in Hz")
	fs.Float64("tts-speed", defaults.TTS.Speed, "Speech speed multiplier")
	fs.Int("tts-max-chars", defaults.TTS.MaxChars, "Per-segment character budget (minimum 400)")
	fs.String("tts-exec-command", defaults.TTS.ExecCommand, "Engine command line for the exec engine")
	fs.String("tts-pocket-cli-path", defaults.TTS.PocketCLIPath, "Path to pocket-tts executable")
	fs.String("tts-pocket-config-path", defaults.TTS.PocketConfigPath, "Path to pocket-tts config file")
	fs.String("tts-remote-addr", defaults.TTS.RemoteAddr, "gRPC address of a narrate server for the remote engine")
	fs.Bool("tts-remote-insecure", defaults.TTS.RemoteInsecure, "Dial the remote engine without TLS")
	fs.Bool("tts-quiet", defaults.TTS.Quiet, "Silence engine subprocess diagnostics")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.String("server-grpc-addr", defaults.Server.GRPCAddr, "gRPC listen address (empty disables gRPC)")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent HTTP synthesis requests")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.String("encoder-lame-path", defaults.Encoder.LamePath, "lame executable")
	fs.String("encoder-ffmpeg-path", defaults.Encoder.FFmpegPath, "ffmpeg executable")
	fs.Bool("telemetry-enabled", defaults.Telemetry.Enabled, "Enable OpenTelemetry metrics and tracing")
	fs.String("telemetry-exporter", defaults.Telemetry.TraceExporter, "Trace exporter (none|stdout|otlp)")
	fs.String("telemetry-otlp-endpoint", defaults.Telemetry.OTLPEndpoint, "OTLP gRPC endpoint")
	fs.Bool("telemetry-otlp-insecure", defaults.Telemetry.OTLPInsecure, "Disable TLS for the OTLP exporter")
	fs.String("telemetry-service-name", defaults.Telemetry.ServiceName, "service.name resource attribute")
	fs.String("publish-nats-url", defaults.Publish.NATSURL, "NATS server URL for artifact publishing")
	fs.String("publish-bucket", defaults.Publish.Bucket, "JetStream object store bucket")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("NARRATE")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("narrate")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	engine, err := NormalizeEngine(cfg.TTS.Engine)
	if err != nil {
		return Config{}, err
	}
	cfg.TTS.Engine = engine

	return cfg, nil
}

// bindFlags binds each known flag present in fs to its dotted config key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("paths.catalog", c.Paths.Catalog)
	v.SetDefault("paths.out_dir", c.Paths.OutDir)
	v.SetDefault("tts.engine", c.TTS.Engine)
	v.SetDefault("tts.voice", c.TTS.Voice)
	v.SetDefault("tts.fallback_voice", c.TTS.FallbackVoice)
	v.SetDefault("tts.fallback_lang", c.TTS.FallbackLang)
	v.SetDefault("tts.sample_rate", c.TTS.SampleRate)
	v.SetDefault("tts.speed", c.TTS.Speed)
	v.SetDefault("tts.max_chars", c.TTS.MaxChars)
	v.SetDefault("tts.exec_command", c.TTS.ExecCommand)
	v.SetDefault("tts.pocket_cli_path", c.TTS.PocketCLIPath)
	v.SetDefault("tts.pocket_config_path", c.TTS.PocketConfigPath)
	v.SetDefault("tts.remote_addr", c.TTS.RemoteAddr)
	v.SetDefault("tts.remote_insecure", c.TTS.RemoteInsecure)
	v.SetDefault("tts.quiet", c.TTS.Quiet)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.grpc_addr", c.Server.GRPCAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("encoder.lame_path", c.Encoder.LamePath)
	v.SetDefault("encoder.ffmpeg_path", c.Encoder.FFmpegPath)
	v.SetDefault("telemetry.enabled", c.Telemetry.Enabled)
	v.SetDefault("telemetry.trace_exporter", c.Telemetry.TraceExporter)
	v.SetDefault("telemetry.otlp_endpoint", c.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.otlp_insecure", c.Telemetry.OTLPInsecure)
	v.SetDefault("telemetry.service_name", c.Telemetry.ServiceName)
	v.SetDefault("publish.nats_url", c.Publish.NATSURL)
	v.SetDefault("publish.bucket", c.Publish.Bucket)
}
