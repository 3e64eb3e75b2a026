// Package publish encodes temperature images and sends them to an MQTT
// broker.
package publish

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/x448/float16"
)

// Temperature is a temperature in °C. Failed pixels are NaN and encode as
// JSON null, as do infinities, which JSON cannot represent.
type Temperature float32

func (t Temperature) MarshalJSON() ([]byte, error) {
	if f := float64(t); math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(t), 'f', 2, 32), nil
}

// Frame is one complete image.
type Frame struct {
	Device  string        `json:"device"`
	Time    time.Time     `json:"time"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Ambient Temperature   `json:"ambient"`
	Pixels  []Temperature `json:"pixels"`
}

// NewFrame copies temps into a Frame.
func NewFrame(device string, t time.Time, width, height int, ambient float32, temps []float32) *Frame {
	f := &Frame{
		Device:  device,
		Time:    t,
		Width:   width,
		Height:  height,
		Ambient: Temperature(ambient),
		Pixels:  make([]Temperature, len(temps)),
	}
	for i, v := range temps {
		f.Pixels[i] = Temperature(v)
	}
	return f
}

// EncodeJSON writes f as a single line of JSON.
func EncodeJSON(w io.Writer, f *Frame) error {
	return json.NewEncoder(w).Encode(f)
}

// EncodeFloat16 writes temps as little-endian IEEE 754 half precision
// values, two bytes per pixel. NaN is preserved.
func EncodeFloat16(w io.Writer, temps []float32) error {
	buf := make([]byte, 2*len(temps))
	for i, t := range temps {
		binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(t).Bits())
	}
	_, err := w.Write(buf)
	return err
}

// DecodeFloat16 is the inverse of EncodeFloat16.
func DecodeFloat16(data []byte) []float32 {
	temps := make([]float32, len(data)/2)
	for i := range temps {
		temps[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
	}
	return temps
}
