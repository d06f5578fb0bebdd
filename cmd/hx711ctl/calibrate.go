// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warthog618/hx711"
)

func init() {
	calibrateCmd.Flags().Float64VarP(&calibrateOpts.Weight, "weight", "w", 0, "the reference weight, in display units")
	calibrateCmd.Flags().StringVarP(&calibrateOpts.Gain, "gain", "g", "a128", "select the gain and channel.")
	calibrateCmd.MarkFlagRequired("weight")
	calibrateCmd.SetHelpTemplate(calibrateCmd.HelpTemplate() + extendedGainHelp)
	rootCmd.AddCommand(calibrateCmd)
}

var (
	calibrateCmd = &cobra.Command{
		Use:                   "calibrate [flags] <chip> <dout> <sclk>",
		Short:                 "Calibrate the scale using a reference weight",
		Long: `Tare a HX711 then derive the scale from a known reference weight.

The cell is tared unloaded, then the reference weight is placed on the cell
and the scale derived from the resulting readings. The reported offset and
scale can be passed to subsequent read commands.`,
		Args:                  cobra.ExactArgs(3),
		RunE:                  calibrate,
		DisableFlagsInUseLine: true,
	}
	calibrateOpts = struct {
		Weight float64
		Gain   string
	}{}
)

func calibrate(cmd *cobra.Command, args []string) error {
	g, err := parseGain(calibrateOpts.Gain)
	if err != nil {
		return err
	}
	fmt.Println("unload the cell and press enter to tare...")
	bufio.NewReader(os.Stdin).ReadString('\n')
	h, err := requestHX711("hx711ctl-calibrate", args, hx711.WithGain(g))
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Printf("place the %v reference weight on the cell and press enter...\n",
		calibrateOpts.Weight)
	bufio.NewReader(os.Stdin).ReadString('\n')
	scale, err := h.CalibrateScale(calibrateOpts.Weight)
	if err != nil {
		return fmt.Errorf("error calibrating: %s", err)
	}
	v, err := h.Read()
	if err != nil {
		return fmt.Errorf("error reading device: %s", err)
	}
	fmt.Printf("weight: %.2f\n", v)
	fmt.Printf("offset: %v\n", h.Offset())
	fmt.Printf("scale: %v\n", scale)
	return nil
}
