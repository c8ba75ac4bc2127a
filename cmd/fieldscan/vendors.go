package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/fieldscan/internal/layout"
)

// vendorsCmd represents the vendors command
var vendorsCmd = &cobra.Command{
	Use:   "vendors [document]",
	Short: "List vendor layouts, or show which one a document matches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		vendors, err := layout.ListVendors(cfg.ConfigsDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			for _, name := range vendors {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		vendor, err := layout.MatchVendor(vendors, stem)
		if err != nil {
			return err
		}

		lay, err := layout.Load(layout.VendorPath(vendor, cfg.ConfigsDir))
		if err != nil {
			return err
		}
		fields := lay.Resolve(cfg.DPI)
		layout.LogFields(log.WithVendor(vendor), fields)
		fmt.Fprintf(out, "%s -> %s (%d fields)\n", args[0], vendor, len(fields))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vendorsCmd)
}
