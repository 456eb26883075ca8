package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/plantlight/luxmeter"
	"github.com/plantlight/luxmeter/camera"
	"github.com/plantlight/luxmeter/meter"
)

func newRunCmd(gf *globalFlags) *cobra.Command {
	var (
		refreshRate float64
		smoothing   int
		once        bool
		all         bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Print live light readings until interrupted",
		Long: `Run acquires the camera and analyzes its frames continuously. A reading is
printed whenever the score changes, or for every published reading with --all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gf.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("refresh-rate") {
				cfg.Loop.RefreshRate = refreshRate
			}
			if cmd.Flags().Changed("smoothing") {
				cfg.Loop.Smoothing = smoothing
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			driver, err := newDriver(cfg.Camera)
			if err != nil {
				return err
			}
			opts, err := cfg.LoopOpts()
			if err != nil {
				return err
			}
			session := camera.NewSession(driver, &camera.SessionOpts{DeviceID: cfg.Camera.Device})
			l, err := meter.New(session, opts)
			if err != nil {
				return fmt.Errorf("new loop: %w", err)
			}

			ctx := cmd.Context()
			if err := l.Start(ctx); err != nil {
				var aerr *luxmeter.AcquisitionError
				if errors.As(err, &aerr) && aerr.PermissionDenied() {
					return fmt.Errorf("camera access is required for the light meter, please check your permissions: %w", err)
				}
				return err
			}
			defer func() {
				if err := l.Stop(); err != nil {
					log.Error().Err(err).Msg("stopping analysis loop")
				}
			}()

			out := cmd.OutOrStdout()
			health := time.NewTicker(time.Second)
			defer health.Stop()
			last := -1
			for {
				select {
				case <-ctx.Done():
					st := l.Stats()
					log.Info().
						Uint64("cycles", st.Cycles).
						Uint64("skipped", st.Skipped).
						Uint64("published", st.Published).
						Msg("interrupted")
					return nil
				case <-health.C:
					if l.State() == meter.Failed {
						return fmt.Errorf("analysis loop failed: %w", l.Err())
					}
				case r := <-l.Updates():
					if !all && r.Score == last {
						continue
					}
					last = r.Score
					fmt.Fprintf(out, "%s ", r.SampledAt.Format("15:04:05.000"))
					printReading(out, r)
					if once {
						return nil
					}
				}
			}
		},
	}
	flags := cmd.Flags()
	flags.Float64Var(&refreshRate, "refresh-rate", meter.DefaultRefreshRate, "analysis cycles per second")
	flags.IntVar(&smoothing, "smoothing", 0, "number of cycles to average over, 0 for none")
	flags.BoolVar(&once, "once", false, "exit after the first reading")
	flags.BoolVar(&all, "all", false, "print every reading, not only changes")
	return cmd
}
