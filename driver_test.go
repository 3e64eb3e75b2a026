package mlx9064x

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mikesmitty/mlx9064x/internal/sensortest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func parseTest(cal *testCalibration) CalibrationParser {
	return func(data []byte) (Calibration, error) {
		if len(data) != EEPROMLength {
			return nil, &InvalidDataError{What: "EEPROM dump", Got: len(data), Want: EEPROMLength}
		}
		return cal, nil
	}
}

const chessControl = 0x1000 | uint16(Resolution18)<<10 | uint16(RefreshRate2Hz)<<7

func newTestDev(t *testing.T, control uint16, cal *testCalibration) (*Dev[testGeometry], *sensortest.Bus) {
	t.Helper()
	bus := sensortest.NewBus(DefaultAddress)
	bus.Set(uint16(ControlRegister), control)
	// Readings built by rawFrame assume emissivity 1.
	d, err := NewDev[testGeometry](bus, DefaultAddress, "TEST", parseTest(cal), &Opts{Emissivity: 1})
	if err != nil {
		t.Fatal(err)
	}
	return d, bus
}

// loadFrame stores f in the simulated RAM and raises the data ready flag.
func loadFrame(bus *sensortest.Bus, f *RawFrame) {
	g := testGeometry{}
	bus.Load(0x0400, f.Pixels)
	bus.Set(uint16(g.AmbientVBE()), f.VBE)
	bus.Set(uint16(g.AmbientPTAT()), f.PTAT)
	bus.Set(uint16(g.GainRegister()), f.Gain)
	bus.Set(uint16(g.VddPixel()), f.Vdd)
	bus.Set(uint16(g.CompensationPixel(f.Subpage)), f.CompensationPixel)
	bus.Set(uint16(StatusRegister), statusDataReady|uint16(f.Subpage))
}

func TestNewDev(t *testing.T) {
	d, _ := newTestDev(t, chessControl, newTestCalibration())
	if d.AccessPattern() != Chess {
		t.Errorf("AccessPattern = %v", d.AccessPattern())
	}
	if d.Resolution() != Resolution18 {
		t.Errorf("Resolution = %v", d.Resolution())
	}
	if d.RefreshRate() != RefreshRate2Hz || d.RefreshRate().Hertz() != 2 {
		t.Errorf("RefreshRate = %v", d.RefreshRate())
	}
	if d.Height() != 2 || d.Width() != 2 {
		t.Errorf("size = %dx%d", d.Width(), d.Height())
	}
	if got := d.String(); !strings.HasPrefix(got, "TEST{sensortest") {
		t.Errorf("String = %q", got)
	}
	if err := d.Halt(); err != nil {
		t.Error(err)
	}
}

func TestNewDevPlayback(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x33, W: []byte{0x24, 0x00}, R: make([]byte, EEPROMLength)},
			{Addr: 0x33, W: []byte{0x80, 0x0D}, R: []byte{0x19, 0x00}},
			{Addr: 0x33, W: []byte{0x80, 0x00}, R: []byte{0x00, 0x00}},
		},
		DontPanic: true,
	}
	d, err := NewDev[testGeometry](bus, 0x33, "TEST", parseTest(newTestCalibration()), nil)
	if err != nil {
		t.Fatal(err)
	}
	done, err := d.Poll(make([]float32, 4))
	if err != nil || done {
		t.Errorf("Poll = %v, %v; want false, nil", done, err)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewDevErrors(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		bus := sensortest.NewBus(DefaultAddress)
		bus.Fail = map[uint16]bool{uint16(EEPROMBase): true}
		_, err := NewDev[testGeometry](bus, DefaultAddress, "TEST", parseTest(newTestCalibration()), nil)
		var te *TransportError
		if !errors.As(err, &te) || te.Register != EEPROMBase {
			t.Fatalf("got %v, want TransportError at EEPROM", err)
		}
		if !errors.Is(err, sensortest.ErrInjected) {
			t.Errorf("error does not unwrap to the bus error: %v", err)
		}
	})
	t.Run("calibration", func(t *testing.T) {
		bus := sensortest.NewBus(DefaultAddress)
		parse := func([]byte) (Calibration, error) {
			return nil, &ConfigurationError{Field: "gain", Reason: "is zero"}
		}
		_, err := NewDev[testGeometry](bus, DefaultAddress, "TEST", parse, nil)
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("got %v, want ConfigurationError", err)
		}
	})
	t.Run("emissivity", func(t *testing.T) {
		bus := sensortest.NewBus(DefaultAddress)
		_, err := NewDev[testGeometry](bus, DefaultAddress, "TEST", parseTest(newTestCalibration()), &Opts{Emissivity: 1.5})
		if err == nil {
			t.Fatal("emissivity 1.5 accepted")
		}
		if bus.Reads != 0 {
			t.Errorf("%d reads before rejecting options", bus.Reads)
		}
	})
}

func TestPollNotReady(t *testing.T) {
	d, bus := newTestDev(t, chessControl, newTestCalibration())
	bus.Set(uint16(StatusRegister), 0x0001)
	done, err := d.Poll(make([]float32, 4))
	if err != nil || done {
		t.Fatalf("Poll = %v, %v; want false, nil", done, err)
	}
	if len(bus.Writes) != 0 {
		t.Errorf("writes = %v", bus.Writes)
	}
}

func TestPollStatusError(t *testing.T) {
	d, bus := newTestDev(t, chessControl, newTestCalibration())
	bus.Set(uint16(StatusRegister), statusDataReady|0x0002)
	_, err := d.Poll(make([]float32, 4))
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 0x000A {
		t.Fatalf("got %v, want StatusError 0x000A", err)
	}
}

func TestPollBufferLength(t *testing.T) {
	d, bus := newTestDev(t, chessControl, newTestCalibration())
	reads := bus.Reads
	_, err := d.Poll(make([]float32, 3))
	var ide *InvalidDataError
	if !errors.As(err, &ide) || ide.Got != 3 || ide.Want != 4 {
		t.Fatalf("got %v, want InvalidDataError", err)
	}
	if bus.Reads != reads {
		t.Error("bus accessed with an invalid buffer")
	}
}

func TestPollTransportError(t *testing.T) {
	cal := newTestCalibration()
	d, bus := newTestDev(t, chessControl, cal)
	loadFrame(bus, rawFrame(t, cal, Subpage0, []float32{20, 20, 20, 20}))
	bus.Fail = map[uint16]bool{0x0400: true}
	_, err := d.Poll(make([]float32, 4))
	if !errors.Is(err, sensortest.ErrInjected) {
		t.Fatalf("got %v, want injected failure", err)
	}
	if bus.Get(uint16(StatusRegister))&statusDataReady == 0 {
		t.Error("data ready cleared after a failed read")
	}
}

func TestPollChess(t *testing.T) {
	cal := newTestCalibration()
	d, bus := newTestDev(t, chessControl, cal)
	targets := []float32{25, 35, 45, 55}
	out := make([]float32, 4)

	loadFrame(bus, rawFrame(t, cal, Subpage0, targets))
	done, err := d.Poll(out)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("image complete after one chess subpage")
	}
	if got := bus.Get(uint16(StatusRegister)); got != uint16(Subpage0) {
		t.Errorf("status after poll = 0x%04X, want data ready cleared", got)
	}

	// The same subpage again does not complete the image.
	loadFrame(bus, rawFrame(t, cal, Subpage0, targets))
	if done, err := d.Poll(out); err != nil || done {
		t.Fatalf("Poll = %v, %v; want false, nil", done, err)
	}

	loadFrame(bus, rawFrame(t, cal, Subpage1, targets))
	done, err = d.Poll(out)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("image incomplete after both subpages")
	}
	for p, want := range targets {
		if math.Abs(float64(out[p]-want)) > 0.1 {
			t.Errorf("pixel %d = %.3f, want %.3f", p, out[p], want)
		}
	}
	wantTa := AmbientTemperature(cal, ReferenceVoltage, testPTAT, testVBE)
	if math.Abs(float64(d.AmbientTemperature()-wantTa)) > 1e-3 {
		t.Errorf("AmbientTemperature = %v, want %v", d.AmbientTemperature(), wantTa)
	}

	// The next image starts from scratch.
	loadFrame(bus, rawFrame(t, cal, Subpage0, targets))
	if done, err := d.Poll(out); err != nil || done {
		t.Fatalf("Poll = %v, %v; want false, nil", done, err)
	}
}

func TestPollSingleSubpage(t *testing.T) {
	cal := newTestCalibration()
	d, bus := newTestDev(t, uint16(Resolution18)<<10, cal)
	if d.AccessPattern() != Interleave {
		t.Fatalf("AccessPattern = %v", d.AccessPattern())
	}
	f := rawFrame(t, cal, Subpage1, []float32{20, 30, 40, 50})
	f.AccessPattern = Interleave
	loadFrame(bus, f)
	out := make([]float32, 4)
	done, err := d.Poll(out)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("image incomplete although every subpage covers the whole array")
	}
	for p, want := range []float32{20, 30, 40, 50} {
		if math.Abs(float64(out[p]-want)) > 0.1 {
			t.Errorf("pixel %d = %.3f, want %.3f", p, out[p], want)
		}
	}
}

func TestControlSetters(t *testing.T) {
	d, bus := newTestDev(t, chessControl|0x0001, newTestCalibration())

	if err := d.SetAccessPattern(Interleave); err != nil {
		t.Fatal(err)
	}
	if err := d.SetResolution(Resolution19); err != nil {
		t.Fatal(err)
	}
	if err := d.SetRefreshRate(RefreshRate16Hz); err != nil {
		t.Fatal(err)
	}

	want := []sensortest.Write{
		{Register: 0x800D, Value: 0x0901},
		{Register: 0x800D, Value: 0x0D01},
		{Register: 0x800D, Value: 0x0E81},
	}
	if len(bus.Writes) != len(want) {
		t.Fatalf("writes = %v, want %v", bus.Writes, want)
	}
	for i := range want {
		if bus.Writes[i] != want[i] {
			t.Errorf("write %d = %+v, want %+v", i, bus.Writes[i], want[i])
		}
	}
	if d.AccessPattern() != Interleave || d.Resolution() != Resolution19 || d.RefreshRate() != RefreshRate16Hz {
		t.Errorf("settings = %v %v %v", d.AccessPattern(), d.Resolution(), d.RefreshRate())
	}

	bus.Fail = map[uint16]bool{uint16(ControlRegister): true}
	if err := d.SetResolution(Resolution16); !errors.Is(err, sensortest.ErrInjected) {
		t.Errorf("got %v, want injected failure", err)
	}
	if d.Resolution() != Resolution19 {
		t.Error("resolution changed although the write failed")
	}
}

func TestEmissivity(t *testing.T) {
	cal := newTestCalibration()
	bus := sensortest.NewBus(DefaultAddress)
	d, err := NewDev[testGeometry](bus, DefaultAddress, "TEST", parseTest(cal), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Emissivity(); got != DefaultEmissivity {
		t.Errorf("default = %v", got)
	}

	cal.emissivity = 0.9
	if got := d.Emissivity(); got != 0.9 {
		t.Errorf("calibrated = %v", got)
	}

	if err := d.SetEmissivity(0.7); err != nil {
		t.Fatal(err)
	}
	if got := d.Emissivity(); got != 0.7 {
		t.Errorf("override = %v", got)
	}
	if err := d.SetEmissivity(1.2); err == nil {
		t.Error("emissivity 1.2 accepted")
	}
	if err := d.SetEmissivity(0); err != nil {
		t.Fatal(err)
	}
	if got := d.Emissivity(); got != 0.9 {
		t.Errorf("after reset = %v", got)
	}
}

func TestSense(t *testing.T) {
	cal := newTestCalibration()
	d, bus := newTestDev(t, chessControl, cal)
	loadFrame(bus, rawFrame(t, cal, Subpage0, []float32{0, 0, 0, 0}))
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	want := AmbientTemperature(cal, ReferenceVoltage, testPTAT, testVBE)
	if got := e.Temperature.Celsius(); math.Abs(got-float64(want)) > 0.01 {
		t.Errorf("Sense = %v°C, want %v°C", got, want)
	}
}

func TestStatusSubpage(t *testing.T) {
	for _, tt := range []struct {
		status uint16
		want   Subpage
		err    bool
	}{{0x0008, Subpage0, false}, {0x0009, Subpage1, false}, {0x0001, Subpage1, false}, {0x000F, 0, true}, {0x0003, 0, true}} {
		got, err := statusSubpage(tt.status)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("statusSubpage(0x%04X) = %v, %v", tt.status, got, err)
		}
	}
}

func TestSenseContinuous(t *testing.T) {
	cal := newTestCalibration()
	fast := uint16(Resolution18)<<10 | uint16(RefreshRate64Hz)<<7
	d, bus := newTestDev(t, fast, cal)
	loadFrame(bus, rawFrame(t, cal, Subpage0, []float32{0, 0, 0, 0}))

	ch, err := d.SenseContinuous(time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	want := AmbientTemperature(cal, ReferenceVoltage, testPTAT, testVBE)
	for i := 0; i < 2; i++ {
		e := <-ch
		if got := e.Temperature.Celsius(); math.Abs(got-float64(want)) > 0.01 {
			t.Errorf("reading %d = %v°C, want %v°C", i, got, want)
		}
	}
	if err := d.Sense(&physic.Env{}); err == nil {
		t.Error("Sense succeeded while sensing continuously")
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	for range ch {
	}
	if err := d.Sense(&physic.Env{}); err != nil {
		t.Errorf("Sense after Halt: %v", err)
	}

	var e physic.Env
	d.Precision(&e)
	if e.Temperature <= 0 {
		t.Errorf("Precision = %v", e.Temperature)
	}
}
