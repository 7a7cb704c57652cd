package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dkeye/GeoMeet/internal/config"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	cmd := &cobra.Command{
		Use:     "geomeet",
		Short:   "Meet halfway: share locations in a room and find venues near everyone.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.configFile != "" {
				c.v.SetConfigFile(c.configFile)
			}
			cfg, err := config.LoadWith(c.v)
			if err != nil {
				return err
			}
			level, _ := zerolog.ParseLevel(cfg.LogLevel)
			zerolog.SetGlobalLevel(level)
			c.cfg = cfg
			return nil
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.configFile, "config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	fs.StringP("name", "n", "", "display name shown to other members (env: GEOMEET_DISPLAY_NAME)")
	fs.String("gateway", "", "base url of the room service (env: GEOMEET_GATEWAY_BASE_URL)")
	fs.String("identity-backend", "", "where the client id is kept: file, redis or memory (env: GEOMEET_IDENTITY_BACKEND)")
	fs.String("location", "", "location provider: none, static or ipapi (env: GEOMEET_LOCATION_PROVIDER)")
	fs.Float64("lat", 0, "latitude for the static provider (env: GEOMEET_LOCATION_LAT)")
	fs.Float64("lon", 0, "longitude for the static provider (env: GEOMEET_LOCATION_LON)")
	fs.Duration("poll-interval", 0, "membership refresh interval (env: GEOMEET_POLL_INTERVAL)")
	fs.String("log-level", "", "zerolog level (env: GEOMEET_LOG_LEVEL)")

	bind := map[string]string{
		"name":             "display_name",
		"gateway":          "gateway.base_url",
		"identity-backend": "identity.backend",
		"location":         "location.provider",
		"lat":              "location.lat",
		"lon":              "location.lon",
		"poll-interval":    "poll_interval",
		"log-level":        "log_level",
	}
	for flag, key := range bind {
		if err := c.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	cmd.AddCommand(
		newServeCmd(c),
		newCreateCmd(c),
		newWatchCmd(c),
		newVenuesCmd(c),
		newWhoamiCmd(c),
		newLinkCmd(c),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("geomeet v{{.Version}}\n")
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}
