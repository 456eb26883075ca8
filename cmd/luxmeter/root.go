package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/plantlight/luxmeter/camera"
	"github.com/plantlight/luxmeter/camera/ffmpeg"
	"github.com/plantlight/luxmeter/camera/gstreamer"
	"github.com/plantlight/luxmeter/camera/imagesnap"
	"github.com/plantlight/luxmeter/config"
)

// globalFlags override the configuration file when set.
type globalFlags struct {
	configPath string
	driver     string
	device     string
	facing     string
	interval   time.Duration
	verbose    bool
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "luxmeter",
		Short: "Measure ambient light with a camera",
		Long: `Luxmeter reads frames from a camera, scores their brightness from 0 to 100
and classifies the light as low, indirect or direct, with plants that suit it.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&gf.configPath, "config", "c", os.Getenv("LUXMETER_CONFIG"), "YAML configuration file")
	pf.StringVar(&gf.driver, "driver", "", "capture driver: imagesnap on macOS; gstreamer or ffmpeg on linux")
	pf.StringVar(&gf.device, "device", "", "device ID to use, by default picked by facing")
	pf.StringVar(&gf.facing, "facing", "", "preferred camera: environment or user")
	pf.DurationVar(&gf.interval, "interval", 0, "how often the capture tool takes a frame, 0 for the driver default")
	pf.BoolVarP(&gf.verbose, "verbose", "v", false, "debug logging, and pass capture tool output through")

	cmd.AddCommand(newRunCmd(gf))
	cmd.AddCommand(newDevicesCmd(gf))
	cmd.AddCommand(newStillCmd(gf))

	return cmd
}

// load reads the configuration, applies flags, validates it and sets up
// logging.
func (gf *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Camera.Driver = gf.driver
	}
	if flags.Changed("device") {
		cfg.Camera.Device = gf.device
	}
	if flags.Changed("facing") {
		cfg.Camera.Facing = gf.facing
	}
	if flags.Changed("interval") {
		cfg.Camera.Interval = config.Duration(gf.interval)
	}
	if gf.verbose {
		cfg.Log.Level = "debug"
		cfg.Camera.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(c config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	if c.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
			NoColor:    !c.Colors,
		})
	}

	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newDriver(c config.CameraConfig) (camera.Driver, error) {
	switch c.Driver {
	case "gstreamer":
		return gstreamer.NewDriver(gstreamer.DriverOpts{Verbose: c.Verbose, Interval: c.Interval.Duration()}), nil
	case "ffmpeg":
		return ffmpeg.NewDriver(ffmpeg.DriverOpts{Verbose: c.Verbose, Interval: c.Interval.Duration()}), nil
	case "imagesnap":
		return imagesnap.NewDriver(imagesnap.DriverOpts{Verbose: c.Verbose, Interval: c.Interval.Duration()}), nil
	}
	return nil, fmt.Errorf("unknown driver %q", c.Driver)
}
