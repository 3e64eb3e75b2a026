package mlx90642

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/mikesmitty/mlx9064x"
	"github.com/mikesmitty/mlx9064x/internal/sensortest"
	"github.com/mikesmitty/mlx9064x/mlx90641"
)

func withChecksums(t *testing.T, payloads []uint16) []uint16 {
	t.Helper()
	ee := append([]uint16(nil), payloads...)
	for i := range ee {
		w, err := mlx90641.AddChecksum(ee[i])
		if err != nil {
			t.Fatal(err)
		}
		ee[i] = w
	}
	return ee
}

func TestParseCalibrationWithoutChecksums(t *testing.T) {
	payloads := sensortest.MLX90641Payloads()
	want, err := mlx90641.ParseCalibration(mlx9064x.Bytes(withChecksums(t, payloads)))
	if err != nil {
		t.Fatal(err)
	}

	cal, err := ParseCalibration(mlx9064x.Bytes(payloads))
	if err != nil {
		t.Fatal(err)
	}
	if !cal.Synthesized() {
		t.Error("Synthesized = false for a dump without check bits")
	}
	if !reflect.DeepEqual(cal.Calibration, want) {
		t.Error("calibration differs from the MLX90641 decode of the same payloads")
	}
}

func TestParseCalibrationWithChecksums(t *testing.T) {
	cal, err := ParseCalibration(mlx9064x.Bytes(withChecksums(t, sensortest.MLX90641Payloads())))
	if err != nil {
		t.Fatal(err)
	}
	if cal.Synthesized() {
		t.Error("Synthesized = true for a dump with valid check bits")
	}
}

func TestParseCalibrationErrors(t *testing.T) {
	_, err := ParseCalibration(make([]byte, 4))
	var ide *mlx9064x.InvalidDataError
	if !errors.As(err, &ide) {
		t.Errorf("short dump: got %v, want InvalidDataError", err)
	}

	// A calibration error is not a reason to synthesize check bits.
	payloads := sensortest.MLX90641Payloads()
	payloads[36], payloads[37] = 0, 0
	_, err = ParseCalibration(mlx9064x.Bytes(withChecksums(t, payloads)))
	var ce *mlx9064x.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("zero gain: got %v, want ConfigurationError", err)
	}

	// Without check bits the retry reports the same calibration error.
	_, err = ParseCalibration(mlx9064x.Bytes(payloads))
	if !errors.As(err, &ce) {
		t.Errorf("zero gain without check bits: got %v, want ConfigurationError", err)
	}
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debugf(string, ...interface{}) {}

func (l *recordingLogger) Infof(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warningf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestNew(t *testing.T) {
	bus := sensortest.NewBus(mlx9064x.DefaultAddress)
	bus.Load(uint16(mlx9064x.EEPROMBase), sensortest.MLX90641Payloads())
	log := &recordingLogger{}
	dev, err := New(bus, mlx9064x.DefaultAddress, &mlx9064x.Opts{Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	if dev.Height() != mlx90641.Height || dev.Width() != mlx90641.Width {
		t.Errorf("size = %dx%d", dev.Width(), dev.Height())
	}
	cal, ok := dev.Calibration().(*Calibration)
	if !ok || !cal.Synthesized() {
		t.Fatalf("Calibration = %T, want synthesized *Calibration", dev.Calibration())
	}
	found := false
	for _, l := range log.lines {
		found = found || strings.Contains(l, "synthesized")
	}
	if !found {
		t.Errorf("no synthesis message in %q", log.lines)
	}
	if got := dev.FailedPixels(); !reflect.DeepEqual(got, []int{sensortest.MLX90641FailedPixel}) {
		t.Errorf("FailedPixels = %v", got)
	}
}
