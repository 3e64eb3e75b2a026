package mlx90641

import (
	"github.com/mikesmitty/mlx9064x"
)

// Words below protectedStart hold device configuration and carry no check
// bits.
const protectedStart = 16

// EEPROM layout. Word indices are relative to mlx9064x.EEPROMBase and refer to
// the 11-bit payloads left after Hamming decoding.
var (
	fieldOffsetScale = mlx9064x.Field{Word: 16, Shift: 5, Width: 6}
	fieldKtaAvg      = mlx9064x.Field{Word: 21, Width: 11, Signed: true}
	fieldKtaScale1   = mlx9064x.Field{Word: 22, Shift: 5, Width: 6}
	fieldKtaScale2   = mlx9064x.Field{Word: 22, Width: 5}
	fieldKvAvg       = mlx9064x.Field{Word: 23, Width: 11, Signed: true}
	fieldKvScale1    = mlx9064x.Field{Word: 24, Shift: 5, Width: 6}
	fieldKvScale2    = mlx9064x.Field{Word: 24, Width: 5}
	// Alpha scale of row groups 0, 2, 4 in the high half and 1, 3, 5 in the
	// low half of words 25 to 27.
	fieldRowAlphaScaleEven = mlx9064x.Field{Word: 25, Shift: 5, Width: 6}
	fieldRowAlphaScaleOdd  = mlx9064x.Field{Word: 25, Width: 5}
	fieldRowMaxAlpha       = mlx9064x.Field{Word: 28, Width: 11}
	fieldKsTa              = mlx9064x.Field{Word: 34, Width: 11, Signed: true}
	fieldEmissivity        = mlx9064x.Field{Word: 35, Width: 11}
	fieldVdd25             = mlx9064x.Field{Word: 38, Width: 11, Signed: true}
	fieldKVdd              = mlx9064x.Field{Word: 39, Width: 11, Signed: true}
	fieldKtPTAT            = mlx9064x.Field{Word: 42, Width: 11, Signed: true}
	fieldKvPTAT            = mlx9064x.Field{Word: 43, Width: 6, Signed: true}
	fieldAlphaPTAT         = mlx9064x.Field{Word: 44, Width: 11}
	fieldAlphaCP           = mlx9064x.Field{Word: 45, Width: 11, Signed: true}
	fieldAlphaCPScale      = mlx9064x.Field{Word: 46, Width: 11}
	fieldKtaCP             = mlx9064x.Field{Word: 49, Width: 6, Signed: true}
	fieldKtaCPScale        = mlx9064x.Field{Word: 49, Shift: 6, Width: 5}
	fieldKvCP              = mlx9064x.Field{Word: 50, Width: 6, Signed: true}
	fieldKvCPScale         = mlx9064x.Field{Word: 50, Shift: 6, Width: 5}
	fieldTGC               = mlx9064x.Field{Word: 51, Width: 9, Signed: true}
	fieldResolution        = mlx9064x.Field{Word: 51, Shift: 9, Width: 2}
	fieldKsToScale         = mlx9064x.Field{Word: 52, Width: 11}

	// 16-bit values split over two words as 32*hi + lo.
	wideOffsetRef = wide{17, 18}
	wideGain      = wide{36, 37}
	wideVPTAT25   = wide{40, 41}
	wideOffsetCP  = wide{47, 48}

	// Fixed corners are followed by three stored ones.
	fixedCorners   = [...]int16{-40, -20, 0, 80, 120}
	fieldCorners   = [...]mlx9064x.Field{{Word: 58, Width: 11}, {Word: 60, Width: 11}, {Word: 62, Width: 11}}
	fieldKsTo      = [...]int{53, 54, 55, 56, 57, 59, 61, 63}
	fieldKsToValue = mlx9064x.Field{Width: 11, Signed: true}

	// Per-pixel words, indexed by pixel.
	fieldPixelOffset0 = mlx9064x.Field{Word: 64, Width: 11, Signed: true}
	fieldPixelAlpha   = mlx9064x.Field{Word: 256, Width: 11}
	fieldPixelKta     = mlx9064x.Field{Word: 448, Shift: 5, Width: 6, Signed: true}
	fieldPixelKv      = mlx9064x.Field{Word: 448, Width: 5, Signed: true}
	fieldPixelOffset1 = mlx9064x.Field{Word: 640, Width: 11, Signed: true}
)

const rowGroupPixels = 32

type wide struct {
	hi, lo int
}

func (w wide) get(words []uint16) int16 {
	return int16(uint16(32*uint32(words[w.hi]) + uint32(words[w.lo])))
}

// Calibration is the decoded MLX90641 EEPROM.
type Calibration struct {
	kVdd       int16
	vdd25      int16
	resolution mlx9064x.Resolution
	kvPTAT     float32
	ktPTAT     float32
	vPTAT25    float32
	alphaPTAT  float32
	gain       float32
	ksTa       float32

	corners         []int16
	ksTo            []float32
	alphaCorrection []float32

	emissivity    float32
	hasEmissivity bool
	tgc           float32

	offsets [2][]int16
	alphas  []float32
	kvs     []float32
	ktas    []float32

	offsetCP int16
	alphaCP  float32
	kvCP     float32
	ktaCP    float32

	failed   []int
	outliers []int
}

// ParseCalibration decodes an EEPROM dump read from mlx9064x.EEPROMBase.
// Every protected word is checked first; an uncorrectable word aborts with a
// *mlx9064x.ChecksumError.
func ParseCalibration(data []byte) (*Calibration, error) {
	words, err := mlx9064x.Words(data)
	if err != nil {
		return nil, err
	}
	if err := decodeWords(words); err != nil {
		return nil, err
	}
	return fromWords(words)
}

func fromWords(ee []uint16) (*Calibration, error) {
	c := &Calibration{
		kVdd:       int16(32 * fieldKVdd.Get(ee)),
		vdd25:      int16(32 * fieldVdd25.Get(ee)),
		resolution: mlx9064x.Resolution(fieldResolution.Get(ee)),
		kvPTAT:     float32(fieldKvPTAT.Get(ee)) / 4096,
		ktPTAT:     float32(fieldKtPTAT.Get(ee)) / 8,
		vPTAT25:    float32(wideVPTAT25.get(ee)),
		alphaPTAT:  float32(fieldAlphaPTAT.Get(ee)) / 128,
		gain:       float32(wideGain.get(ee)),
		ksTa:       float32(fieldKsTa.Get(ee)) / 32768,
		tgc:        float32(fieldTGC.Get(ee)) / 64,
	}
	if e := fieldEmissivity.Get(ee); e != 0 {
		c.emissivity = float32(e) / 2048
		c.hasEmissivity = true
	}

	c.corners = append(c.corners, fixedCorners[:]...)
	for _, f := range fieldCorners {
		c.corners = append(c.corners, int16(f.Get(ee)))
	}
	ksToScale := mlx9064x.Pow2(fieldKsToScale.Get(ee))
	for _, w := range fieldKsTo {
		c.ksTo = append(c.ksTo, float32(fieldKsToValue.At(w).Get(ee))/ksToScale)
	}
	if err := mlx9064x.ValidateBands(c.corners, c.ksTo, basicTempRange); err != nil {
		return nil, err
	}
	c.alphaCorrection = mlx9064x.AlphaCorrection(c.corners, c.ksTo, basicTempRange)

	for _, v := range []struct {
		name string
		v    float32
	}{{"kVdd", float32(c.kVdd)}, {"KtPTAT", c.ktPTAT}, {"gain", c.gain}} {
		if err := mlx9064x.ValidateNonZero(v.name, v.v); err != nil {
			return nil, err
		}
	}

	c.offsetCP = wideOffsetCP.get(ee)
	c.alphaCP = float32(fieldAlphaCP.Get(ee)) / mlx9064x.Pow2(fieldAlphaCPScale.Get(ee))
	c.ktaCP = float32(fieldKtaCP.Get(ee)) / mlx9064x.Pow2(fieldKtaCPScale.Get(ee))
	c.kvCP = float32(fieldKvCP.Get(ee)) / mlx9064x.Pow2(fieldKvCPScale.Get(ee))

	c.extractPixels(ee)
	return c, nil
}

func (c *Calibration) extractPixels(ee []uint16) {
	offsetScale := int32(1) << fieldOffsetScale.Get(ee)
	offsetRef := int32(wideOffsetRef.get(ee))

	var rowAlpha [NumPixels / rowGroupPixels]float32
	for g := range rowAlpha {
		scale := fieldRowAlphaScaleEven
		if g%2 == 1 {
			scale = fieldRowAlphaScaleOdd
		}
		scale = scale.At(g / 2)
		rowAlpha[g] = float32(fieldRowMaxAlpha.At(g).Get(ee)) / mlx9064x.Pow2(scale.Get(ee)+20) / 2047
	}

	ktaAvg := float32(fieldKtaAvg.Get(ee))
	ktaScale1 := mlx9064x.Pow2(fieldKtaScale1.Get(ee))
	ktaScale2 := mlx9064x.Pow2(fieldKtaScale2.Get(ee))
	kvAvg := float32(fieldKvAvg.Get(ee))
	kvScale1 := mlx9064x.Pow2(fieldKvScale1.Get(ee))
	kvScale2 := mlx9064x.Pow2(fieldKvScale2.Get(ee))

	c.offsets[0] = make([]int16, NumPixels)
	c.offsets[1] = make([]int16, NumPixels)
	c.alphas = make([]float32, NumPixels)
	c.ktas = make([]float32, NumPixels)
	c.kvs = make([]float32, NumPixels)
	for p := 0; p < NumPixels; p++ {
		c.offsets[0][p] = int16(fieldPixelOffset0.At(p).Get(ee)*offsetScale + offsetRef)
		c.offsets[1][p] = int16(fieldPixelOffset1.At(p).Get(ee)*offsetScale + offsetRef)
		alpha := fieldPixelAlpha.At(p).Get(ee)
		c.alphas[p] = float32(alpha) * rowAlpha[p/rowGroupPixels]
		c.ktas[p] = (float32(fieldPixelKta.At(p).Get(ee))*ktaScale2 + ktaAvg) / ktaScale1
		c.kvs[p] = (float32(fieldPixelKv.At(p).Get(ee))*kvScale2 + kvAvg) / kvScale1

		switch {
		case alpha == 0:
			c.failed = append(c.failed, p)
		case saturated(fieldPixelOffset0.At(p), ee) || saturated(fieldPixelOffset1.At(p), ee) ||
			saturated(fieldPixelAlpha.At(p), ee):
			c.outliers = append(c.outliers, p)
		}
	}
}

// saturated reports whether a per-pixel delta sits at the limit of its field,
// meaning the factory value was clipped to fit.
func saturated(f mlx9064x.Field, ee []uint16) bool {
	v := f.Get(ee)
	if f.Signed {
		return v == -1<<(f.Width-1) || v == 1<<(f.Width-1)-1
	}
	return v == 1<<f.Width-1
}

func (c *Calibration) KVdd() int16                     { return c.kVdd }
func (c *Calibration) Vdd25() int16                    { return c.vdd25 }
func (c *Calibration) Resolution() mlx9064x.Resolution { return c.resolution }
func (c *Calibration) KvPTAT() float32                 { return c.kvPTAT }
func (c *Calibration) KtPTAT() float32                 { return c.ktPTAT }
func (c *Calibration) VPTAT25() float32                { return c.vPTAT25 }
func (c *Calibration) AlphaPTAT() float32              { return c.alphaPTAT }
func (c *Calibration) Gain() float32                   { return c.gain }
func (c *Calibration) KsTa() float32                   { return c.ksTa }
func (c *Calibration) CornerTemperatures() []int16     { return c.corners }
func (c *Calibration) KsTo() []float32                 { return c.ksTo }
func (c *Calibration) AlphaCorrection() []float32      { return c.alphaCorrection }

func (c *Calibration) Emissivity() (float32, bool) {
	return c.emissivity, c.hasEmissivity
}

func (c *Calibration) TemperatureGradient() (float32, bool) {
	return c.tgc, true
}

// Offsets are calibrated separately for each subpage; the other
// coefficients are shared.
func (c *Calibration) OffsetPixels(subpage mlx9064x.Subpage) []int16 {
	return c.offsets[subpage]
}

func (c *Calibration) OffsetCP(mlx9064x.Subpage) int16        { return c.offsetCP }
func (c *Calibration) AlphaPixels(mlx9064x.Subpage) []float32 { return c.alphas }
func (c *Calibration) AlphaCP(mlx9064x.Subpage) float32       { return c.alphaCP }
func (c *Calibration) KvPixels(mlx9064x.Subpage) []float32    { return c.kvs }
func (c *Calibration) KvCP(mlx9064x.Subpage) float32          { return c.kvCP }
func (c *Calibration) KtaPixels(mlx9064x.Subpage) []float32   { return c.ktas }
func (c *Calibration) KtaCP(mlx9064x.Subpage) float32         { return c.ktaCP }

// The MLX90641 is calibrated for its only access pattern.
func (c *Calibration) AccessPatternCompensationPixels(mlx9064x.AccessPattern) []float32 {
	return nil
}

func (c *Calibration) AccessPatternCompensationCP(mlx9064x.Subpage, mlx9064x.AccessPattern) (float32, bool) {
	return 0, false
}

func (c *Calibration) FailedPixels() []int  { return c.failed }
func (c *Calibration) OutlierPixels() []int { return c.outliers }

var _ mlx9064x.Calibration = &Calibration{}
