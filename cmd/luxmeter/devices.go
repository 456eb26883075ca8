package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDevicesCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List camera devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gf.load(cmd)
			if err != nil {
				return err
			}
			driver, err := newDriver(cfg.Camera)
			if err != nil {
				return err
			}
			devs, err := driver.ListDevices()
			if err != nil {
				return fmt.Errorf("listing devices: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, dev := range devs {
				caps := ""
				if len(dev.Caps) > 0 {
					l := []string{}
					for _, c := range dev.Caps {
						l = append(l, fmt.Sprintf("%dx%d@%dfps", c.Width, c.Height, c.Framerate))
					}
					caps = fmt.Sprintf(" (caps: %s)", strings.Join(l, " "))
				}
				fmt.Fprintf(out, "%s: %s [%s]%s\n", dev.ID, dev.Name, dev.Facing, caps)
			}
			return nil
		},
	}
}
