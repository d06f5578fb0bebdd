// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/hx711"
)

func init() {
	weighCmd.Flags().UintVarP(&weighOpts.Count, "count", "n", 5, "number of samples to average per reading")
	weighCmd.Flags().StringVarP(&weighOpts.Gain, "gain", "g", "a128", "select the gain and channel.")
	weighCmd.Flags().Float64Var(&weighOpts.Scale, "scale", hx711.DefaultScale, "scale in raw units per display unit")
	weighCmd.Flags().DurationVarP(&weighOpts.Period, "period", "p", 500*time.Millisecond, "time between readings")
	weighCmd.SetHelpTemplate(weighCmd.HelpTemplate() + extendedGainHelp)
	rootCmd.AddCommand(weighCmd)
}

var (
	weighCmd = &cobra.Command{
		Use:                   "weigh [flags] <chip> <dout> <sclk>",
		Short:                 "Continuously weigh the load on a cell",
		Long:                  `Tare a HX711 then report the weight on the cell until interrupted.`,
		Args:                  cobra.ExactArgs(3),
		RunE:                  weigh,
		DisableFlagsInUseLine: true,
	}
	weighOpts = struct {
		Count  uint
		Gain   string
		Scale  float64
		Period time.Duration
	}{}
)

func weigh(cmd *cobra.Command, args []string) error {
	g, err := parseGain(weighOpts.Gain)
	if err != nil {
		return err
	}
	h, err := requestHX711("hx711ctl-weigh", args,
		hx711.WithGain(g),
		hx711.WithScale(weighOpts.Scale))
	if err != nil {
		return err
	}
	defer h.Close()

	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	ticker := time.NewTicker(weighOpts.Period)
	defer ticker.Stop()
	for {
		v, err := h.ReadAverage(int(weighOpts.Count))
		if err != nil {
			return fmt.Errorf("error reading device: %s", err)
		}
		fmt.Printf("%.2f\n", v)
		select {
		case <-ticker.C:
		case <-sigdone:
			return nil
		}
	}
}
