package mlx9064x

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the factory I²C address of every variant.
const DefaultAddress uint16 = 0x33

// CalibrationParser decodes an EEPROM dump into a Calibration.
type CalibrationParser func(data []byte) (Calibration, error)

// NewDev opens a camera of geometry G on bus. Variant packages wrap it with
// their own New.
//
// The EEPROM is read and decoded once; the returned Dev keeps the resulting
// calibration for its lifetime.
func NewDev[G Geometry](b i2c.Bus, addr uint16, name string, parse CalibrationParser, opts *Opts) (*Dev[G], error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Emissivity < 0 || opts.Emissivity > 1 {
		return nil, fmt.Errorf("%s: emissivity %v out of range (0, 1]", name, opts.Emissivity)
	}

	var geom G
	d := &Dev[G]{
		c:       &i2c.Dev{Addr: addr, Bus: b},
		geom:    geom,
		name:    name,
		opts:    *opts,
		log:     opts.Logger,
		scratch: make([]byte, 2*geom.NumPixels()),
	}
	if d.log == nil {
		d.log = nopLogger{}
	}
	d.frame.Pixels = make([]uint16, geom.NumPixels())

	eeprom := make([]byte, EEPROMLength)
	if err := d.c.Tx(EEPROMBase.Bytes(), eeprom); err != nil {
		return nil, d.wrap(&TransportError{Op: "read", Register: EEPROMBase, Err: err})
	}
	cal, err := parse(eeprom)
	if err != nil {
		return nil, d.wrap(err)
	}
	d.cal = cal
	d.log.Debugf("%s: calibration loaded, %d failed and %d outlier pixels",
		name, len(cal.FailedPixels()), len(cal.OutlierPixels()))
	for _, p := range cal.OutlierPixels() {
		d.log.Warningf("%s: pixel %d is an outlier", name, p)
	}

	control, err := d.readRegister(ControlRegister)
	if err != nil {
		return nil, d.wrap(err)
	}
	d.applyControl(control)

	return d, nil
}

// Dev is a handle to a thermal camera of geometry G.
//
// Poll, Sense and the setters may be called while SenseContinuous is
// running; other concurrent use is not supported.
type Dev[G Geometry] struct {
	c    conn.Conn
	geom G
	cal  Calibration
	name string
	opts Opts
	log  Logger

	control  uint16
	settings controlSettings
	// oneSubpage is set when a single subpage covers the whole grid with the
	// current access pattern.
	oneSubpage bool
	seen       [2]bool

	frame   RawFrame
	scratch []byte
	ambient float32

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func (d *Dev[G]) String() string {
	return fmt.Sprintf("%s{%s}", d.name, d.c)
}

// Halt stops a SenseContinuous loop and closes its channel. The camera
// itself keeps measuring.
func (d *Dev[G]) Halt() error {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
		d.wg.Wait()
	}
	return nil
}

// Height returns the number of pixel rows.
func (d *Dev[G]) Height() int {
	return d.geom.Height()
}

// Width returns the number of pixel columns.
func (d *Dev[G]) Width() int {
	return d.geom.Width()
}

// Calibration returns the decoded factory calibration.
func (d *Dev[G]) Calibration() Calibration {
	return d.cal
}

// Outliers lists the pixels flagged as outliers by the factory calibration.
// Their temperatures are computed but may be inaccurate.
func (d *Dev[G]) Outliers() []int {
	return d.cal.OutlierPixels()
}

// FailedPixels lists the pixels that are always reported as NaN.
func (d *Dev[G]) FailedPixels() []int {
	return d.cal.FailedPixels()
}

// AmbientTemperature returns the die temperature computed by the last
// successful Poll.
func (d *Dev[G]) AmbientTemperature() float32 {
	return d.ambient
}

// AccessPattern returns the access pattern the camera is configured with.
func (d *Dev[G]) AccessPattern() AccessPattern {
	return d.settings.pattern
}

// Resolution returns the ADC resolution the camera is configured with.
func (d *Dev[G]) Resolution() Resolution {
	return d.settings.resolution
}

// RefreshRate returns the refresh rate the camera is configured with.
func (d *Dev[G]) RefreshRate() RefreshRate {
	return d.settings.rate
}

// Emissivity returns the emissivity used for conversions.
func (d *Dev[G]) Emissivity() float32 {
	if d.opts.Emissivity != 0 {
		return d.opts.Emissivity
	}
	if e, ok := d.cal.Emissivity(); ok {
		return e
	}
	return DefaultEmissivity
}

// SetEmissivity overrides the emissivity used for conversions. Zero restores
// the calibrated or default value.
func (d *Dev[G]) SetEmissivity(e float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e < 0 || e > 1 {
		return d.wrap(fmt.Errorf("emissivity %v out of range (0, 1]", e))
	}
	d.opts.Emissivity = e
	return nil
}

// SetAccessPattern changes the pixel-to-subpage assignment. A partially
// gathered image is discarded.
func (d *Dev[G]) SetAccessPattern(p AccessPattern) error {
	return d.writeControl(controlPatternMask, controlPatternShift, uint16(p))
}

// SetResolution changes the ADC resolution.
func (d *Dev[G]) SetResolution(r Resolution) error {
	return d.writeControl(controlResolutionMask, controlResolutionShift, uint16(r))
}

// SetRefreshRate changes the subpage measurement rate.
func (d *Dev[G]) SetRefreshRate(r RefreshRate) error {
	return d.writeControl(controlRefreshMask, controlRefreshShift, uint16(r))
}

// Poll checks whether the camera has measured a new subpage. If not, it
// returns false immediately. Otherwise the subpage is read and its pixels are
// converted into out, which must hold Height()*Width() temperatures in
// row-major order. Poll returns true once out holds a complete image.
//
// Poll never sleeps or retries; the caller chooses how often to call it.
func (d *Dev[G]) Poll(out []float32) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.geom.NumPixels(); len(out) != n {
		return false, d.wrap(&InvalidDataError{What: "temperature buffer", Got: len(out), Want: n})
	}
	status, err := d.readRegister(StatusRegister)
	if err != nil {
		return false, d.wrap(err)
	}
	if status&statusDataReady == 0 {
		return false, nil
	}
	subpage, err := statusSubpage(status)
	if err != nil {
		return false, d.wrap(err)
	}

	if err := d.readFrame(subpage); err != nil {
		return false, d.wrap(err)
	}
	if err := d.writeRegister(StatusRegister, status&^statusDataReady); err != nil {
		return false, d.wrap(err)
	}

	ta, err := Convert(d.geom, d.cal, &d.frame, d.Emissivity(), out)
	if err != nil {
		return false, d.wrap(err)
	}
	d.ambient = ta
	d.log.Debugf("%s: subpage %d converted, ambient %.2f°C", d.name, subpage, ta)

	d.seen[subpage] = true
	if d.oneSubpage || (d.seen[Subpage0] && d.seen[Subpage1]) {
		d.seen = [2]bool{}
		return true, nil
	}
	return false, nil
}

// Sense reads the die temperature of the camera without reading a frame.
func (d *Dev[G]) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return d.wrap(errors.New("already sensing continuously"))
	}
	if err := d.sense(e); err != nil {
		return d.wrap(err)
	}
	return nil
}

// SenseContinuous reports the die temperature every interval, or once per
// refresh period if that is longer.
//
// The application must call Halt() to stop the sensing when done and close
// the channel.
func (d *Dev[G]) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if err := d.Halt(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if period := time.Duration(float32(time.Second) / d.settings.rate.Hertz()); interval < period {
		interval = period
	}
	sensing := make(chan physic.Env)
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer d.wg.Done()
		defer close(sensing)
		d.sensingContinuous(interval, sensing, stop)
	}(d.stop)
	return sensing, nil
}

// Precision reports the resolution of the die temperature.
func (d *Dev[G]) Precision(e *physic.Env) {
	e.Temperature = physic.Kelvin / 100
}

func (d *Dev[G]) sensingContinuous(interval time.Duration, sensing chan<- physic.Env, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		e := physic.Env{}
		d.mu.Lock()
		err := d.sense(&e)
		d.mu.Unlock()
		if err != nil {
			d.log.Warningf("%v", d.wrap(err))
			return
		}
		select {
		case sensing <- e:
		case <-stop:
			return
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

func (d *Dev[G]) sense(e *physic.Env) error {
	var raw [3]uint16
	for i, a := range [3]Address{d.geom.VddPixel(), d.geom.AmbientPTAT(), d.geom.AmbientVBE()} {
		v, err := d.readRegister(a)
		if err != nil {
			return err
		}
		raw[i] = v
	}
	vdd := SupplyVoltage(d.geom, d.cal, d.settings.resolution, raw[0])
	ta := AmbientTemperature(d.cal, vdd, raw[1], raw[2])
	e.Temperature = physic.Temperature(ta*1000)*physic.MilliCelsius + physic.ZeroCelsius
	return nil
}

func (d *Dev[G]) readFrame(subpage Subpage) error {
	f := &d.frame
	f.Subpage = subpage
	f.AccessPattern = d.settings.pattern
	f.Resolution = d.settings.resolution
	for r := range d.geom.PixelRanges(subpage, f.AccessPattern) {
		if err := d.readWords(r.Start, f.Pixels[r.Offset:r.Offset+r.Length]); err != nil {
			return err
		}
	}
	aux := [...]struct {
		addr Address
		dst  *uint16
	}{
		{d.geom.AmbientVBE(), &f.VBE},
		{d.geom.AmbientPTAT(), &f.PTAT},
		{d.geom.GainRegister(), &f.Gain},
		{d.geom.VddPixel(), &f.Vdd},
		{d.geom.CompensationPixel(subpage), &f.CompensationPixel},
	}
	for _, a := range aux {
		v, err := d.readRegister(a.addr)
		if err != nil {
			return err
		}
		*a.dst = v
	}
	return nil
}

func (d *Dev[G]) applyControl(control uint16) {
	d.control = control
	d.settings = parseControl(control)
	d.oneSubpage = true
	for member := range d.geom.PixelsInSubpage(Subpage0, d.settings.pattern) {
		if !member {
			d.oneSubpage = false
			break
		}
	}
	d.seen = [2]bool{}
}

func (d *Dev[G]) writeControl(mask uint16, shift uint, value uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	control := setControlField(d.control, mask, shift, value)
	if err := d.writeRegister(ControlRegister, control); err != nil {
		return d.wrap(err)
	}
	d.applyControl(control)
	return nil
}

func (d *Dev[G]) readRegister(a Address) (uint16, error) {
	var b [2]byte
	if err := d.c.Tx(a.Bytes(), b[:]); err != nil {
		return 0, &TransportError{Op: "read", Register: a, Err: err}
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Dev[G]) readWords(a Address, dst []uint16) error {
	b := d.scratch[:2*len(dst)]
	if err := d.c.Tx(a.Bytes(), b); err != nil {
		return &TransportError{Op: "read", Register: a, Err: err}
	}
	for i := range dst {
		dst[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return nil
}

func (d *Dev[G]) writeRegister(a Address, v uint16) error {
	w := [4]byte{byte(a >> 8), byte(a), byte(v >> 8), byte(v)}
	if err := d.c.Tx(w[:], nil); err != nil {
		return &TransportError{Op: "write", Register: a, Err: err}
	}
	return nil
}

func (d *Dev[G]) wrap(err error) error {
	return fmt.Errorf("%s: %w", strings.ToLower(d.name), err)
}
