// Command mlx9064x reads temperature images from an MLX90640, MLX90641 or
// MLX90642 thermal camera.
//
// Usage:
//
//	mlx9064x [-config file] <640|641|642> <bus> <address>
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mikesmitty/mlx9064x"
	"github.com/mikesmitty/mlx9064x/internal/logging"
	"github.com/mikesmitty/mlx9064x/internal/publish"
	"github.com/mikesmitty/mlx9064x/mlx90640"
	"github.com/mikesmitty/mlx9064x/mlx90641"
	"github.com/mikesmitty/mlx9064x/mlx90642"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// camera is the part of mlx9064x.Dev the command uses, independent of the
// geometry.
type camera interface {
	String() string
	Height() int
	Width() int
	Poll(out []float32) (bool, error)
	AmbientTemperature() float32
	FailedPixels() []int
}

func main() {
	if err := run(); err != nil {
		logging.Log.Criticalf("%v", err)
		os.Exit(1)
	}
}

func run() (err error) {
	var needHelp bool
	var configFile string
	flag.BoolVar(&needHelp, "help", false, "Display this help message")
	flag.StringVar(&configFile, "config", "", "Config file (JSON, YAML or TOML)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] <640|641|642> <bus> <address>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if needHelp {
		flag.Usage()
		return nil
	}

	logging.InitializeLogging()
	setDefaults(viper.GetViper())
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
		logging.Log.Noticef("Config file <%s> loaded", configFile)
	}
	if err := logging.ConfigureLogging(viper.GetString("log-level")); err != nil {
		return err
	}

	args := flag.Args()
	if len(args) != 3 {
		flag.Usage()
		return fmt.Errorf("expected 3 arguments, got %d", len(args))
	}
	addr, err := parseAddress(args[2])
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(args[1])
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, bus.Close())
	}()

	opts := &mlx9064x.Opts{
		Emissivity: float32(viper.GetFloat64("emissivity")),
		Logger:     logging.Log,
	}
	dev, err := open(args[0], bus, addr, opts)
	if err != nil {
		return err
	}
	logging.Log.Infof("Opened %s, %dx%d pixels, %d failed", dev, dev.Width(), dev.Height(), len(dev.FailedPixels()))

	format := viper.GetString("format")
	switch format {
	case "text", "json", "f16":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	var pub *publish.Publisher
	if broker := viper.GetString("mqtt.broker"); broker != "" {
		pub, err = publish.Dial(publish.Config{
			Broker:   broker,
			Topic:    viper.GetString("mqtt.topic"),
			ClientID: viper.GetString("mqtt.client-id"),
			QoS:      byte(viper.GetUint("mqtt.qos")),
		})
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, pub.Close())
		}()
		logging.Log.Infof("Publishing to %s on %s", viper.GetString("mqtt.topic"), broker)
	}

	temps := make([]float32, dev.Height()*dev.Width())
	interval := viper.GetDuration("poll-interval")
	for n := 0; n < viper.GetInt("polls"); {
		done, err := dev.Poll(temps)
		if err != nil {
			return err
		}
		if !done {
			time.Sleep(interval)
			continue
		}
		n++
		logging.Log.Debugf("Image %d complete, ambient %.2f°C", n, dev.AmbientTemperature())

		frame := publish.NewFrame(dev.String(), time.Now(), dev.Width(), dev.Height(), dev.AmbientTemperature(), temps)
		if err := emit(os.Stdout, format, frame, temps); err != nil {
			return err
		}
		if pub != nil {
			var buf bytes.Buffer
			if err := emit(&buf, format, frame, temps); err != nil {
				return err
			}
			if err := pub.Publish(buf.Bytes()); err != nil {
				return err
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "INFO")
	v.SetDefault("poll-interval", "500ms")
	v.SetDefault("polls", 2)
	v.SetDefault("emissivity", 0)
	v.SetDefault("format", "text")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "mlx9064x/frames")
	v.SetDefault("mqtt.client-id", "mlx9064x")
	v.SetDefault("mqtt.qos", 0)
}

func open(variant string, b i2c.Bus, addr uint16, opts *mlx9064x.Opts) (camera, error) {
	switch strings.TrimPrefix(strings.ToLower(variant), "mlx90") {
	case "640":
		d, err := mlx90640.New(b, addr, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "641":
		d, err := mlx90641.New(b, addr, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "642":
		d, err := mlx90642.New(b, addr, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown camera %q, expected 640, 641 or 642", variant)
	}
}

// parseAddress accepts a 7-bit I²C address in decimal or 0x-prefixed hex.
func parseAddress(s string) (uint16, error) {
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, err := strconv.ParseUint(digits, base, 7)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}

func emit(w io.Writer, format string, frame *publish.Frame, temps []float32) error {
	switch format {
	case "json":
		return publish.EncodeJSON(w, frame)
	case "f16":
		return publish.EncodeFloat16(w, temps)
	default:
		return printGrid(w, frame.Width, frame.Ambient, temps)
	}
}

// printGrid writes temps as rows of width values, preceded by the ambient
// temperature.
func printGrid(w io.Writer, width int, ambient publish.Temperature, temps []float32) error {
	var b strings.Builder
	fmt.Fprintf(&b, "ambient %.2f\n", float32(ambient))
	for i, t := range temps {
		if i%width != 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%6.2f", t)
		if i%width == width-1 {
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
