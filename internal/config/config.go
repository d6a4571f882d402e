package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Publisher/internal/domain"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	Secret        string        `mapstructure:"secret"`
	LogLevel      string        `mapstructure:"log_level"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`

	Publisher PublisherConfig `mapstructure:"publisher"`
	Restart   RestartConfig   `mapstructure:"restart"`
	Capture   CaptureConfig   `mapstructure:"capture"`
}

// PublisherConfig is the stream service section.
type PublisherConfig struct {
	ServiceURL      string   `mapstructure:"service_url"`
	PublishAPIURL   string   `mapstructure:"publish_api_url"`
	StreamName      string   `mapstructure:"stream_name"`
	UserID          string   `mapstructure:"user_id"`
	Password        string   `mapstructure:"password"`
	VideoCodec      string   `mapstructure:"video_codec"`
	AudioCodec      string   `mapstructure:"audio_codec"`
	AudioChannels   int      `mapstructure:"audio_channels"`
	VideoBitrate    int      `mapstructure:"video_bitrate"`
	VideoMinBitrate int      `mapstructure:"video_min_bitrate"`
	AudioBitrate    int      `mapstructure:"audio_bitrate"`
	Simulcast       bool     `mapstructure:"simulcast"`
	Stereo          bool     `mapstructure:"stereo"`
	Protocol        string   `mapstructure:"protocol"`
	ICEServers      []string `mapstructure:"ice_servers"`
	Mode            string   `mapstructure:"mode"`
}

type RestartConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed"`
}

// CaptureConfig drives the built-in test source.
type CaptureConfig struct {
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	FPS       int     `mapstructure:"fps"`
	ToneHz    float64 `mapstructure:"tone_hz"`
	VideoFile string  `mapstructure:"video_file"`
}

// Session builds the configuration of one publish attempt.
func (c *Config) Session() domain.SessionConfig {
	p := c.Publisher
	s := domain.SessionConfig{
		ServiceURL:       p.ServiceURL,
		PublishAPIURL:    p.PublishAPIURL,
		StreamName:       p.StreamName,
		Credentials:      domain.Credentials{UserID: p.UserID, Password: p.Password},
		VideoCodec:       domain.ParseVideoCodec(p.VideoCodec),
		AudioChannels:    p.AudioChannels,
		VideoBitrateKbps: p.VideoBitrate,
		VideoMinKbps:     p.VideoMinBitrate,
		AudioBitrateKbps: p.AudioBitrate,
		Simulcast:        p.Simulcast,
		Stereo:           p.Stereo,
		Protocol:         domain.ParseProtocol(p.Protocol),
		ICEServers:       append([]string(nil), p.ICEServers...),
	}
	switch strings.ToLower(p.AudioCodec) {
	case "opus":
		s.AudioCodec, s.AudioCodecSet = domain.AudioCodecOpus, true
	case "multiopus":
		s.AudioCodec, s.AudioCodecSet = domain.AudioCodecMultiOpus, true
	}
	return s
}

// PublishMode is the login mode sent to the signaling server.
func (c *Config) PublishMode() domain.Mode { return domain.ParseMode(c.Publisher.Mode) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("stats_interval", "1s")

	v.SetDefault("publisher.service_url", "")
	v.SetDefault("publisher.publish_api_url", "")
	v.SetDefault("publisher.stream_name", "")
	v.SetDefault("publisher.user_id", "")
	v.SetDefault("publisher.password", "")
	v.SetDefault("publisher.video_codec", "")
	v.SetDefault("publisher.audio_codec", "")
	v.SetDefault("publisher.audio_channels", 2)
	v.SetDefault("publisher.video_bitrate", 2500)
	v.SetDefault("publisher.video_min_bitrate", 0)
	v.SetDefault("publisher.audio_bitrate", 128)
	v.SetDefault("publisher.simulcast", false)
	v.SetDefault("publisher.stereo", false)
	v.SetDefault("publisher.protocol", "auto")
	v.SetDefault("publisher.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("publisher.mode", "standard")

	v.SetDefault("restart.enabled", false)
	v.SetDefault("restart.initial_interval", "2s")
	v.SetDefault("restart.max_interval", "1m")
	v.SetDefault("restart.max_elapsed", "10m")

	v.SetDefault("capture.width", 1280)
	v.SetDefault("capture.height", 720)
	v.SetDefault("capture.fps", 30)
	v.SetDefault("capture.tone_hz", 440.0)
	v.SetDefault("capture.video_file", "")
}

// Store keeps the current configuration and reloads it when the file changes.
type Store struct {
	v   *viper.Viper
	cur atomic.Pointer[Config]
}

// Load reads config/config.<CONFIG_ENV>.yaml, "dev" by default.
func Load() (*Store, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName on top of the defaults. A missing file is not an error.
// PUBLISHER_* environment variables override both.
func LoadFile(fileName string) (*Store, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("publisher")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	s := &Store{v: v}
	cfg, err := s.decode()
	if err != nil {
		return nil, err
	}
	s.cur.Store(cfg)
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return s, nil
}

func (s *Store) decode() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Current returns the active configuration. Callers must not modify it.
func (s *Store) Current() *Config { return s.cur.Load() }

// SessionConfig builds the next attempt's configuration from the active file.
func (s *Store) SessionConfig() (domain.SessionConfig, error) {
	return s.Current().Session(), nil
}

// Watch reloads on file changes. onChange, if set, runs after each successful reload.
func (s *Store) Watch(onChange func(*Config)) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := s.decode()
		if err != nil {
			log.Error().Str("module", "config").Err(err).Str("file", e.Name).Msg("reload failed, keeping previous config")
			return
		}
		s.cur.Store(cfg)
		log.Info().Str("module", "config").Str("file", e.Name).Msg("config reloaded")
		if onChange != nil {
			onChange(cfg)
		}
	})
	s.v.WatchConfig()
}
