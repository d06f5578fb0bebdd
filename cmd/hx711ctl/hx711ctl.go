// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A utility to read load cells connected via HX711 ADCs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hx711ctl",
	Short: "hx711ctl is a utility to read load cells connected via HX711 ADCs",
	Long:  "hx711ctl is a utility to read, tare and calibrate load cells connected to HX711 ADCs on GPIO lines",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "hx711ctl %s: %s\n", cmd.Name(), err)
}
