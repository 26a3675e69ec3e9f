package main

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/pflag"

	"github.com/EgorLis/qimessaging/internal/config"
)

func TestParseFlags(t *testing.T) {
	c := qt.New(t)

	f, _, err := parseFlags([]string{"--host", "nao.local", "-e", "state", "--no-reconnect"})
	c.Assert(err, qt.IsNil)
	c.Assert(f.host, qt.Equals, "nao.local")
	c.Assert(f.exec, qt.Equals, "state")
	c.Assert(f.noReconnect, qt.IsTrue)
	c.Assert(f.configPath, qt.Equals, "qicall.toml")

	_, _, err = parseFlags([]string{"extra"})
	c.Assert(err, qt.ErrorMatches, `argument "extra" not valid`)

	_, _, err = parseFlags([]string{"--help"})
	c.Assert(err, qt.Equals, pflag.ErrHelp)
}

func TestFlagsOverrideConfig(t *testing.T) {
	c := qt.New(t)
	for _, key := range []string{config.EnvHost, config.EnvDebug, config.EnvReconnect, config.EnvTransport, config.EnvCodec} {
		c.Setenv(key, "")
	}
	path := filepath.Join(c.TempDir(), "qicall.toml")
	c.Assert(os.WriteFile(path, []byte("host = \"from-file\"\ndebug = true\n"), 0o644), qt.IsNil)

	f, flagSet, err := parseFlags([]string{"--config", path, "--transport", "websocket", "--codec", "cbor", "--no-reconnect"})
	c.Assert(err, qt.IsNil)
	cfg, err := loadConfig(f, flagSet)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Host, qt.Equals, "from-file")
	c.Assert(cfg.Debug, qt.IsTrue)
	c.Assert(cfg.Reconnect, qt.IsFalse)
	c.Assert(cfg.Transport, qt.Equals, config.TransportWebSocket)
	c.Assert(cfg.Codec, qt.Equals, "cbor")

	f, flagSet, err = parseFlags([]string{"--config", path, "--codec", "cbor"})
	c.Assert(err, qt.IsNil)
	_, err = loadConfig(f, flagSet)
	c.Assert(err, qt.ErrorMatches, `codec "cbor" over socket.io not valid`)

	// Flag values are matched like the config file and environment ones.
	f, flagSet, err = parseFlags([]string{"--config", path, "--transport", " SocketIO", "--codec", "JSON"})
	c.Assert(err, qt.IsNil)
	cfg, err = loadConfig(f, flagSet)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Transport, qt.Equals, config.TransportSocketIO)
	c.Assert(cfg.Codec, qt.Equals, "json")
}
