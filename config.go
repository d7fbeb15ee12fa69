package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "NAVALBOX"

// envAliases lists extra environment variables honoured for a flag, after
// the NAVALBOX_ prefixed one.
var envAliases = map[string][]string{
	"port":            {"PORT"},
	"ngrok-authtoken": {"NGROK_AUTHTOKEN"},
}

type Config struct {
	allowedOrigins []string
	bind           string
	defaultRoom    string
	gameOverDelay  time.Duration
	ngrok          bool
	ngrokAuthtoken string
	ngrokDomain    string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.gameOverDelay < 0 {
		return fmt.Errorf("invalid game over delay (must not be negative): %s", c.gameOverDelay)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	if c.ngrok && c.ngrokAuthtoken == "" {
		return errors.New("--ngrok requires --ngrok-authtoken (or NGROK_AUTHTOKEN)")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func envName(flag string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "navalbox",
		Short:         "Two-player naval battle over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", nil, "origins allowed to open game connections; empty allows any (env: NAVALBOX_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: NAVALBOX_BIND)")
	fs.StringVar(&cfg.defaultRoom, "default-room", "lobby", "room for /ws connections that do not name one; empty waits for a join message (env: NAVALBOX_DEFAULT_ROOM)")
	fs.DurationVar(&cfg.gameOverDelay, "game-over-delay", 3*time.Second, "time a finished game stays open before its players are disconnected (env: NAVALBOX_GAME_OVER_DELAY)")
	fs.BoolVar(&cfg.ngrok, "ngrok", false, "also serve through an ngrok tunnel (env: NAVALBOX_NGROK)")
	fs.StringVar(&cfg.ngrokAuthtoken, "ngrok-authtoken", "", "ngrok auth token (env: NAVALBOX_NGROK_AUTHTOKEN, NGROK_AUTHTOKEN)")
	fs.StringVar(&cfg.ngrokDomain, "ngrok-domain", "", "reserved ngrok domain to use (env: NAVALBOX_NGROK_DOMAIN)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: NAVALBOX_PORT, PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: NAVALBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: NAVALBOX_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed; 0 disables (env: NAVALBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: NAVALBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: NAVALBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: NAVALBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: NAVALBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(append([]string{f.Name, envName(f.Name)}, envAliases[f.Name]...)...)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("navalbox v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}
