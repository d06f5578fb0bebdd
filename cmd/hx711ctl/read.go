// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpiod"
	"github.com/warthog618/hx711"
)

func init() {
	readCmd.Flags().UintVarP(&readOpts.Count, "count", "n", 1, "number of samples to average")
	readCmd.Flags().BoolVarP(&readOpts.Raw, "raw", "r", false, "display the raw sample value")
	readCmd.Flags().StringVarP(&readOpts.Gain, "gain", "g", "a128", "select the gain and channel.")
	readCmd.Flags().Float64Var(&readOpts.Scale, "scale", hx711.DefaultScale, "scale in raw units per display unit")
	readCmd.Flags().Float64Var(&readOpts.Offset, "offset", 0, "tare offset in raw units")
	readCmd.Flags().BoolVarP(&readOpts.Tare, "tare", "t", false, "tare before reading")
	readCmd.SetHelpTemplate(readCmd.HelpTemplate() + extendedGainHelp)
	rootCmd.AddCommand(readCmd)
}

var extendedGainHelp = `
Gains:
  a128:         channel A, gain 128
  a64:          channel A, gain 64
  b32:          channel B, gain 32
`

var (
	readCmd = &cobra.Command{
		Use:                   "read [flags] <chip> <dout> <sclk>",
		Short:                 "Read the weight on a load cell",
		Long:                  `Read a calibrated weight, or raw sample value, from a HX711 on a GPIO chip.`,
		Args:                  cobra.ExactArgs(3),
		RunE:                  read,
		DisableFlagsInUseLine: true,
	}
	readOpts = struct {
		Count  uint
		Raw    bool
		Gain   string
		Scale  float64
		Offset float64
		Tare   bool
	}{}
)

func read(cmd *cobra.Command, args []string) error {
	g, err := parseGain(readOpts.Gain)
	if err != nil {
		return err
	}
	options := []hx711.Option{
		hx711.WithGain(g),
		hx711.WithScale(readOpts.Scale),
		hx711.WithOffset(readOpts.Offset),
	}
	if !readOpts.Tare {
		options = append(options, hx711.WithoutTare())
	}
	h, err := requestHX711("hx711ctl-read", args, options...)
	if err != nil {
		return err
	}
	defer h.Close()
	if readOpts.Raw {
		v, err := h.ReadRawAverage(int(readOpts.Count))
		if err != nil {
			return fmt.Errorf("error reading device: %s", err)
		}
		fmt.Printf("%.0f\n", v)
		return nil
	}
	v, err := h.ReadAverage(int(readOpts.Count))
	if err != nil {
		return fmt.Errorf("error reading device: %s", err)
	}
	fmt.Printf("%.2f\n", v)
	return nil
}

func requestHX711(consumer string, args []string, options ...hx711.Option) (*hx711.HX711, error) {
	dout, err := parseOffset(args[1])
	if err != nil {
		return nil, err
	}
	sclk, err := parseOffset(args[2])
	if err != nil {
		return nil, err
	}
	c, err := gpiod.NewChip(args[0], gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	defer c.Close()
	h, err := hx711.New(c, dout, sclk, options...)
	if err != nil {
		return nil, fmt.Errorf("error requesting device: %s", err)
	}
	return h, nil
}

func parseOffset(arg string) (int, error) {
	o, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse offset '%s'", arg)
	}
	return int(o), nil
}

func parseGain(arg string) (hx711.Gain, error) {
	switch strings.ToLower(arg) {
	case "a128":
		return hx711.GainA128, nil
	case "a64":
		return hx711.GainA64, nil
	case "b32":
		return hx711.GainB32, nil
	}
	return 0, fmt.Errorf("can't parse gain '%s'", arg)
}
