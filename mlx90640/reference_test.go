package mlx90640

import (
	"math"
	"testing"

	"github.com/mikesmitty/mlx9064x"
	"github.com/mikesmitty/mlx9064x/internal/sensortest"
	"periph.io/x/conn/v3/physic"
)

// Calculation example from the Melexis MLX90640 datasheet: EEPROM and RAM
// words with the published supply voltage and ambient temperature.
var datasheetEEPROM = map[int]uint16{
	0x10: 0x4210, // alphaPTAT, OCC scales
	0x30: 0x18EF, // gain
	0x31: 0x2FF1, // VPTAT25
	0x32: 0x5952, // KvPTAT, KtPTAT
	0x33: 0x9D68, // KVdd, Vdd25
}

const (
	datasheetVdd  = 0xCCC5
	datasheetPTAT = 0x06AF
	datasheetVBE  = 0x4BF2

	datasheetSupply  = 3.319
	datasheetAmbient = 39.184
)

func datasheetWords() []uint16 {
	ee := testWords()
	for w, v := range datasheetEEPROM {
		ee[w] = v
	}
	return ee
}

func TestDatasheetCalibration(t *testing.T) {
	cal, err := ParseCalibration(mlx9064x.Bytes(datasheetWords()))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		got, want float32
	}{
		{"KVdd", float32(cal.KVdd()), -3168},
		{"Vdd25", float32(cal.Vdd25()), -13056},
		{"KvPTAT", cal.KvPTAT(), 0.00537109375},
		{"KtPTAT", cal.KtPTAT(), 42.25},
		{"VPTAT25", cal.VPTAT25(), 12273},
		{"AlphaPTAT", cal.AlphaPTAT(), 9},
		{"Gain", cal.Gain(), 6383},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	vdd := mlx9064x.SupplyVoltage(Camera{}, cal, mlx9064x.Resolution18, datasheetVdd)
	if math.Abs(float64(vdd)-datasheetSupply) > 0.001 {
		t.Errorf("supply = %v V, want %v V", vdd, datasheetSupply)
	}
	ta := mlx9064x.AmbientTemperature(cal, vdd, datasheetPTAT, datasheetVBE)
	if math.Abs(float64(ta)-datasheetAmbient) > 0.01 {
		t.Errorf("ambient = %v°C, want %v°C", ta, datasheetAmbient)
	}
}

func TestDatasheetSense(t *testing.T) {
	bus := sensortest.NewBus(mlx9064x.DefaultAddress)
	bus.Load(uint16(mlx9064x.EEPROMBase), datasheetWords())
	bus.Set(uint16(mlx9064x.ControlRegister), uint16(mlx9064x.Resolution18)<<10)
	bus.Set(uint16(vddAddress), datasheetVdd)
	bus.Set(uint16(ptatAddress), datasheetPTAT)
	bus.Set(uint16(vbeAddress), datasheetVBE)

	dev, err := New(bus, mlx9064x.DefaultAddress, nil)
	if err != nil {
		t.Fatal(err)
	}
	var e physic.Env
	if err := dev.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if got := e.Temperature.Celsius(); math.Abs(got-datasheetAmbient) > 0.1 {
		t.Errorf("Sense = %v°C, want %v°C", got, datasheetAmbient)
	}
}
