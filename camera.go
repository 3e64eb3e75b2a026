package mlx9064x

import "iter"

// PixelRange is a contiguous span of RAM holding pixel data. Length words are
// read starting at Start and stored in the frame buffer starting at Offset.
type PixelRange struct {
	Start  Address
	Offset int
	Length int
}

// Geometry describes everything that differs between camera variants as far
// as frame readout and conversion are concerned. Implementations are
// zero-size value types; the driver and converter are instantiated per
// Geometry type, so no code inspects which variant it is dealing with.
type Geometry interface {
	// Height and Width are the dimensions of the pixel grid.
	Height() int
	Width() int
	// NumPixels is Height*Width.
	NumPixels() int

	// PixelRanges yields the RAM spans to read for a subpage, in frame
	// buffer order.
	PixelRanges(subpage Subpage, pattern AccessPattern) iter.Seq[PixelRange]
	// PixelsInSubpage yields NumPixels values in row-major order, true for
	// every pixel updated by the given subpage.
	PixelsInSubpage(subpage Subpage, pattern AccessPattern) iter.Seq[bool]
	// ResolutionCorrection scales readings taken at the current ADC
	// resolution to the resolution the calibration was made at.
	ResolutionCorrection(calibrated, current Resolution) float32

	AmbientVBE() Address
	AmbientPTAT() Address
	CompensationPixel(subpage Subpage) Address
	GainRegister() Address
	VddPixel() Address

	// SelfHeating is subtracted from the ambient temperature to estimate
	// the reflected temperature.
	SelfHeating() float32
	// BasicTemperatureRange is the index of the temperature band whose alpha
	// correction is 1.
	BasicTemperatureRange() int
}

// Calibration is the factory calibration of one camera, decoded from its
// EEPROM. Values are immutable once decoded; returned slices must not be
// modified.
//
// Per-pixel slices have one entry per pixel in row-major order.
type Calibration interface {
	KVdd() int16
	Vdd25() int16
	Resolution() Resolution

	KvPTAT() float32
	KtPTAT() float32
	VPTAT25() float32
	AlphaPTAT() float32

	Gain() float32
	KsTa() float32

	// CornerTemperatures are the lower edges of the temperature bands, in
	// increasing order. KsTo and AlphaCorrection have one entry per band.
	CornerTemperatures() []int16
	KsTo() []float32
	AlphaCorrection() []float32

	// Emissivity reports the emissivity stored in EEPROM, if any.
	Emissivity() (float32, bool)
	// TemperatureGradient reports the TGC coefficient, if any.
	TemperatureGradient() (float32, bool)

	OffsetPixels(subpage Subpage) []int16
	OffsetCP(subpage Subpage) int16
	AlphaPixels(subpage Subpage) []float32
	AlphaCP(subpage Subpage) float32
	KvPixels(subpage Subpage) []float32
	KvCP(subpage Subpage) float32
	KtaPixels(subpage Subpage) []float32
	KtaCP(subpage Subpage) float32

	// AccessPatternCompensationPixels returns the per-pixel correction to add
	// when reading with the given access pattern, or nil when none applies.
	AccessPatternCompensationPixels(pattern AccessPattern) []float32
	// AccessPatternCompensationCP returns the correction to the compensation
	// pixel offset, if any.
	AccessPatternCompensationCP(subpage Subpage, pattern AccessPattern) (float32, bool)

	// FailedPixels and OutlierPixels are sorted pixel indices.
	FailedPixels() []int
	OutlierPixels() []int
}
