// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A daemon that publishes load cell readings from a HX711 to MQTT.
package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	cfgjson "github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/gpiod"
	"github.com/warthog618/hx711"
	"github.com/warthog618/hx711/sim"
)

var log zerolog.Logger

func init() {
	cw := zerolog.ConsoleWriter{Out: os.Stderr}
	log = zerolog.New(cw).With().Timestamp().Logger()
}

// reading is the payload published for each sample.
type reading struct {
	Weight    float64   `json:"weight"`
	Raw       float64   `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	cfg := loadConfig()
	h, err := newHX711(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open device")
	}
	defer h.Close()
	log.Info().
		Str("gain", h.Gain().String()).
		Float64("offset", h.Offset()).
		Float64("scale", h.Scale()).
		Msg("device ready")

	broker := cfg.MustGet("broker").String()
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.MustGet("client-id").String())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("failed to connect to broker")
	}
	defer client.Disconnect(250)
	log.Info().Str("broker", broker).Msg("connected")

	topic := cfg.MustGet("topic").String()
	count := cfg.MustGet("count").Int()
	period := cfg.MustGet("period").Duration()

	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		v, err := h.ReadAverage(count)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read device")
		}
		r := reading{
			Weight:    v,
			Raw:       v*h.Scale() - h.Offset(),
			Timestamp: time.Now(),
		}
		b, err := json.Marshal(r)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to marshal reading")
		}
		token := client.Publish(topic, 0, false, b)
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Msg("failed to publish reading")
		} else {
			log.Debug().Float64("weight", v).Msg("published")
		}
		select {
		case <-ticker.C:
		case <-sigdone:
			log.Info().Msg("shutting down")
			return
		}
	}
}

func newHX711(cfg *config.Config) (*hx711.HX711, error) {
	gain := hx711.GainA128
	switch cfg.MustGet("gain").String() {
	case "a64":
		gain = hx711.GainA64
	case "b32":
		gain = hx711.GainB32
	}
	options := []hx711.Option{
		hx711.WithGain(gain),
		hx711.WithScale(cfg.MustGet("scale").Float()),
		hx711.WithOffset(cfg.MustGet("offset").Float()),
	}
	if !cfg.MustGet("tare").Bool() {
		options = append(options, hx711.WithoutTare())
	}
	if cfg.MustGet("fake").Bool() {
		// simulated device for testing the plumbing without hardware.
		s := sim.New()
		s.SetSteady(int32(cfg.MustGet("fake-raw").Int()))
		options = append(options, hx711.WithClock(s))
		return hx711.NewFromPins(s.DataPin(), s.ClockPin(), options...)
	}
	c, err := gpiod.NewChip(cfg.MustGet("gpiochip").String(),
		gpiod.WithConsumer("hx711mqtt"))
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return hx711.New(c,
		cfg.MustGet("dout").Int(),
		cfg.MustGet("sclk").Int(),
		options...)
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"gpiochip":  "gpiochip0",
		"dout":      5,
		"sclk":      6,
		"gain":      "a128",
		"scale":     hx711.DefaultScale,
		"offset":    0,
		"tare":      true,
		"count":     5,
		"period":    "1s",
		"broker":    "tcp://localhost:1883",
		"client-id": "hx711mqtt",
		"topic":     "hx711/weight",
		"fake":      false,
		"fake-raw":  3500,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags)),
		env.New(env.WithEnvPrefix("HX711MQTT_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "hx711mqtt.json", cfgjson.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust())
	return cfg
}
