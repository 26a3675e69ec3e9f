// Package config loads client settings from a TOML file and the
// environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/EgorLis/qimessaging/internal/transport"
	"github.com/EgorLis/qimessaging/internal/wire"
)

const (
	EnvHost      = "QI_HOST"
	EnvDebug     = "QI_DEBUG"
	EnvReconnect = "QI_RECONNECT"
	EnvTransport = "QI_TRANSPORT"
	EnvCodec     = "QI_CODEC"
)

// Transport kinds.
const (
	TransportSocketIO  = "socketio"
	TransportWebSocket = "websocket"
)

// Config holds everything needed to open a session.
type Config struct {
	Host           string
	Debug          bool
	Reconnect      bool
	Transport      string
	Codec          string
	Resource       string
	ConnectTimeout time.Duration
	Backoff        transport.BackoffConfig
}

// Default returns the settings of a robot's socket.io gateway, host unset.
func Default() Config {
	tc := transport.DefaultConfig()
	return Config{
		Reconnect:      tc.Reconnect,
		Transport:      TransportSocketIO,
		Codec:          wire.JSON.Name(),
		Resource:       tc.Resource,
		ConnectTimeout: tc.ConnectTimeout,
		Backoff:        tc.Backoff,
	}
}

type fileConfig struct {
	Host           string      `toml:"host"`
	Debug          bool        `toml:"debug"`
	Reconnect      bool        `toml:"reconnect"`
	Transport      string      `toml:"transport"`
	Codec          string      `toml:"codec"`
	Resource       string      `toml:"resource"`
	ConnectTimeout string      `toml:"connect_timeout"`
	Backoff        fileBackoff `toml:"backoff"`
}

type fileBackoff struct {
	Initial  string `toml:"initial"`
	Max      string `toml:"max"`
	Attempts int    `toml:"attempts"`
}

// Load reads path over the defaults and applies the environment. An empty
// path or a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Annotatef(err, "load config %s", path)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return err
	}
	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}
	if meta.IsDefined("reconnect") {
		cfg.Reconnect = raw.Reconnect
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("codec") {
		cfg.Codec = strings.ToLower(strings.TrimSpace(raw.Codec))
	}
	if meta.IsDefined("resource") {
		cfg.Resource = strings.Trim(strings.TrimSpace(raw.Resource), "/")
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"backoff.initial", raw.Backoff.Initial, &cfg.Backoff.Initial},
		{"backoff.max", raw.Backoff.Max, &cfg.Backoff.Max},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return errors.Annotatef(err, "parse %s", d.key)
		}
		*d.dst = v
	}
	if meta.IsDefined("backoff", "attempts") {
		cfg.Backoff.Attempts = raw.Backoff.Attempts
	}
	return nil
}

func (cfg *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		cfg.Host = v
	}
	if v, ok := parseBool(os.Getenv(EnvDebug)); ok {
		cfg.Debug = v
	}
	if v, ok := parseBool(os.Getenv(EnvReconnect)); ok {
		cfg.Reconnect = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTransport)); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvCodec)); v != "" {
		cfg.Codec = strings.ToLower(v)
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate checks that the settings describe a usable connection.
func (cfg Config) Validate() error {
	if cfg.Host == "" {
		return errors.NotValidf("empty host")
	}
	if _, err := wire.CodecByName(cfg.Codec); err != nil {
		return errors.Trace(err)
	}
	switch cfg.Transport {
	case TransportSocketIO:
		if cfg.Codec != wire.JSON.Name() {
			return errors.NotValidf("codec %q over socket.io", cfg.Codec)
		}
	case TransportWebSocket:
	default:
		return errors.NotValidf("transport %q", cfg.Transport)
	}
	if cfg.Reconnect && cfg.Backoff.Initial <= 0 {
		return errors.NotValidf("backoff initial delay %v", cfg.Backoff.Initial)
	}
	return nil
}

// TransportConfig returns the transport parameters for cfg.
func (cfg Config) TransportConfig(log zerolog.Logger) transport.Config {
	tc := transport.DefaultConfig()
	tc.Host = cfg.Host
	tc.Reconnect = cfg.Reconnect
	if cfg.Resource != "" {
		tc.Resource = cfg.Resource
	}
	if cfg.ConnectTimeout > 0 {
		tc.ConnectTimeout = cfg.ConnectTimeout
	}
	tc.Backoff = cfg.Backoff
	tc.Logger = log
	return tc
}

// NewTransport validates cfg and builds the transport it names.
func (cfg Config) NewTransport(log zerolog.Logger) (transport.Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	tc := cfg.TransportConfig(log)
	if cfg.Transport == TransportWebSocket {
		codec, err := wire.CodecByName(cfg.Codec)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return transport.NewWebSocket(tc, codec), nil
	}
	return transport.NewSocketIO(tc), nil
}
