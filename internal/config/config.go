// Package config loads the renderer core's runtime configuration from
// flags, environment variables, and an optional config file, layered via
// spf13/viper the way niceyeti-tabular/tabular's FromYaml loads training
// config — except wired to the process's own pflag-defined flag set rather
// than a config file as the sole source, matching go-mizu-mizu's
// cobra-root-owns-the-flags CLI shape.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is every knob the server facade (pkg/purcmc) needs, per spec.md
// §4.B/§4.E and SUPPLEMENTED FEATURES.
type Config struct {
	UnixSocketPath string
	UnixSocketMode uint32

	TCPAddr string
	TLSCert string
	TLSKey  string

	MaxFramePayload int
	MaxInMemPayload int

	ConfirmationTimeout time.Duration

	AccessLog bool

	Subprotocol string
}

// Defaults returns the out-of-the-box configuration: the default Unix
// socket path and mode, conservative payload caps, a 30-second
// confirmation timeout, access logging on, and the "purcmc" WebSocket
// subprotocol. The throttle threshold and idle timers are constants of
// internal/transport, not configuration.
func Defaults() Config {
	return Config{
		UnixSocketPath:      "/var/tmp/purcmc.sock",
		UnixSocketMode:      0666,
		TCPAddr:             "",
		MaxFramePayload:     1 << 20,
		MaxInMemPayload:     4 << 20,
		ConfirmationTimeout: 30 * time.Second,
		AccessLog:           true,
		Subprotocol:         "purcmc",
	}
}

// BindFlags registers this package's flags on fs, defaulting each to the
// value already present in cfg (normally Defaults()).
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.UnixSocketPath, "socket", cfg.UnixSocketPath, "Unix-domain socket path ('' disables the Unix transport)")
	fs.StringVar(&cfg.TCPAddr, "addr", cfg.TCPAddr, "TCP address:port for the WebSocket transport ('' disables it)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "TLS certificate path for the WebSocket transport")
	fs.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "TLS private key path for the WebSocket transport")
	fs.IntVar(&cfg.MaxFramePayload, "max-frame-payload", cfg.MaxFramePayload, "max bytes in a single WebSocket frame payload")
	fs.IntVar(&cfg.MaxInMemPayload, "max-inmem-payload", cfg.MaxInMemPayload, "max bytes of an assembled in-memory message body")
	fs.DurationVar(&cfg.ConfirmationTimeout, "confirmation-timeout", cfg.ConfirmationTimeout, "how long startSession waits on the confirmation collaborator")
	fs.BoolVar(&cfg.AccessLog, "access-log", cfg.AccessLog, "emit one access-log line per completed request")
	fs.StringVar(&cfg.Subprotocol, "ws-subprotocol", cfg.Subprotocol, "required Sec-WebSocket-Protocol token ('' accepts any)")
}

// Load resolves the final Config from flags (already parsed into fs),
// environment variables prefixed PURCMC_, and an optional config file
// named by --config, in that descending precedence — flags win, matching
// viper's documented layering and the renderer's own expectation that an
// operator's explicit command-line choice is never silently overridden by
// a stale config file.
func Load(fs *pflag.FlagSet, cfg *Config, configFile string) error {
	vp := viper.New()
	vp.SetEnvPrefix("PURCMC")
	vp.AutomaticEnv()

	if configFile != "" {
		vp.SetConfigFile(configFile)
		if err := vp.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	if err := vp.BindPFlags(fs); err != nil {
		return fmt.Errorf("config: bind flags: %w", err)
	}

	cfg.UnixSocketPath = vp.GetString("socket")
	cfg.TCPAddr = vp.GetString("addr")
	cfg.TLSCert = vp.GetString("tls-cert")
	cfg.TLSKey = vp.GetString("tls-key")
	if v := vp.GetInt("max-frame-payload"); v > 0 {
		cfg.MaxFramePayload = v
	}
	if v := vp.GetInt("max-inmem-payload"); v > 0 {
		cfg.MaxInMemPayload = v
	}
	if v := vp.GetDuration("confirmation-timeout"); v > 0 {
		cfg.ConfirmationTimeout = v
	}
	cfg.AccessLog = vp.GetBool("access-log")
	cfg.Subprotocol = vp.GetString("ws-subprotocol")

	if cfg.UnixSocketPath == "" && cfg.TCPAddr == "" {
		return fmt.Errorf("config: at least one of --socket or --addr must be set")
	}
	return nil
}
