package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/plantlight/luxmeter"
)

func newStillCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "still <image>",
		Short: "Score the light in an image file",
		Long: `Still reduces an image file the way the live meter reduces camera frames,
and prints its score, light category and matching plants.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gf.load(cmd)
			if err != nil {
				return err
			}
			filter, err := luxmeter.ParseFilter(cfg.Sampler.Filter)
			if err != nil {
				return err
			}
			img, err := imaging.Open(args[0], imaging.AutoOrientation(true))
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}

			s := luxmeter.NewSampler(cfg.Sampler.Width, cfg.Sampler.Height, filter)
			mean, err := luxmeter.Estimate(s.Reduce(img), cfg.Sampler.Stride)
			if err != nil {
				return err
			}
			printReading(cmd.OutOrStdout(), luxmeter.NewReading(luxmeter.Normalize(mean), time.Now()))
			return nil
		},
	}
}

func printReading(w io.Writer, r luxmeter.Reading) {
	p := r.Category.Profile()
	fmt.Fprintf(w, "%d%% %s: %s\n", r.Score, p.Label, p.Description)
	fmt.Fprintf(w, "  plants: %s\n", strings.Join(p.Species(), ", "))
}
