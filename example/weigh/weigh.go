// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/gpiod"
	"github.com/warthog618/gpiod/device/rpi"
	"github.com/warthog618/hx711"
)

// This example tares a HX711 connected to the RPI by two lines - DOUT and
// PD_SCK - then reports the weight on the cell. The default pin assignments
// are defined in loadConfig, but can be altered via configuration (env, flag
// or config file). The clock line is an output so do not run this example on
// a board where that pin serves other purposes.
func main() {
	cfg := loadConfig()
	chip := cfg.MustGet("gpiochip").String()
	c, err := gpiod.NewChip(chip, gpiod.WithConsumer("weigh"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "weigh: %s\n", err)
		os.Exit(1)
	}
	h, err := hx711.New(c,
		cfg.MustGet("dout").Int(),
		cfg.MustGet("sclk").Int(),
		hx711.WithScale(cfg.MustGet("scale").Float()))
	c.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weigh: %s\n", err)
		os.Exit(1)
	}
	defer h.Close()
	for i := 0; i < 10; i++ {
		v, err := h.ReadAverage(5)
		if err != nil {
			fmt.Printf("read error: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("weight: %.2f\n", v)
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"gpiochip": "gpiochip0",
		"scale":    hx711.DefaultScale,
		"dout":     rpi.J8p31,
		"sclk":     rpi.J8p29,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags)),
		env.New(env.WithEnvPrefix("WEIGH_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "weigh.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust())
	return cfg
}
