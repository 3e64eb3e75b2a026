package mlx90640

import (
	"github.com/mikesmitty/mlx9064x"
)

// EEPROM layout. Word indices are relative to mlx9064x.EEPROMBase.
const (
	occRowBase    = 18
	occColumnBase = 24
	accRowBase    = 34
	accColumnBase = 40
	pixelBase     = 64
)

var (
	fieldCalibrationMode = mlx9064x.Field{Word: 10, Shift: 11, Width: 1}

	fieldOccRemScale    = mlx9064x.Field{Word: 16, Width: 4}
	fieldOccColumnScale = mlx9064x.Field{Word: 16, Shift: 4, Width: 4}
	fieldOccRowScale    = mlx9064x.Field{Word: 16, Shift: 8, Width: 4}
	fieldAlphaPTAT      = mlx9064x.Field{Word: 16, Shift: 12, Width: 4}
	fieldOffsetRef      = mlx9064x.Field{Word: 17, Width: 16, Signed: true}

	fieldAccRemScale    = mlx9064x.Field{Word: 32, Width: 4}
	fieldAccColumnScale = mlx9064x.Field{Word: 32, Shift: 4, Width: 4}
	fieldAccRowScale    = mlx9064x.Field{Word: 32, Shift: 8, Width: 4}
	fieldAlphaScale     = mlx9064x.Field{Word: 32, Shift: 12, Width: 4}
	fieldAlphaRef       = mlx9064x.Field{Word: 33, Width: 16}

	fieldGain    = mlx9064x.Field{Word: 48, Width: 16, Signed: true}
	fieldVPTAT25 = mlx9064x.Field{Word: 49, Width: 16, Signed: true}
	fieldKtPTAT  = mlx9064x.Field{Word: 50, Width: 10, Signed: true}
	fieldKvPTAT  = mlx9064x.Field{Word: 50, Shift: 10, Width: 6, Signed: true}
	fieldVdd25   = mlx9064x.Field{Word: 51, Width: 8}
	fieldKVdd    = mlx9064x.Field{Word: 51, Shift: 8, Width: 8, Signed: true}

	// Kv and Kta are stored per parity class of the pixel, see class.
	fieldKv = [4]mlx9064x.Field{
		{Word: 52, Shift: 12, Width: 4, Signed: true},
		{Word: 52, Shift: 4, Width: 4, Signed: true},
		{Word: 52, Shift: 8, Width: 4, Signed: true},
		{Word: 52, Width: 4, Signed: true},
	}
	fieldKta = [4]mlx9064x.Field{
		{Word: 54, Shift: 8, Width: 8, Signed: true},
		{Word: 55, Shift: 8, Width: 8, Signed: true},
		{Word: 54, Width: 8, Signed: true},
		{Word: 55, Width: 8, Signed: true},
	}

	fieldILChess0 = mlx9064x.Field{Word: 53, Width: 6, Signed: true}
	fieldILChess1 = mlx9064x.Field{Word: 53, Shift: 6, Width: 5, Signed: true}
	fieldILChess2 = mlx9064x.Field{Word: 53, Shift: 11, Width: 5, Signed: true}

	fieldKtaScale2  = mlx9064x.Field{Word: 56, Width: 4}
	fieldKtaScale1  = mlx9064x.Field{Word: 56, Shift: 4, Width: 4}
	fieldKvScale    = mlx9064x.Field{Word: 56, Shift: 8, Width: 4}
	fieldResolution = mlx9064x.Field{Word: 56, Shift: 12, Width: 2}

	fieldAlphaCP      = mlx9064x.Field{Word: 57, Width: 10, Signed: true}
	fieldAlphaCPRatio = mlx9064x.Field{Word: 57, Shift: 10, Width: 6, Signed: true}
	fieldOffsetCP     = mlx9064x.Field{Word: 58, Width: 10, Signed: true}
	fieldOffsetCPDiff = mlx9064x.Field{Word: 58, Shift: 10, Width: 6, Signed: true}
	fieldKtaCP        = mlx9064x.Field{Word: 59, Width: 8, Signed: true}
	fieldKvCP         = mlx9064x.Field{Word: 59, Shift: 8, Width: 8, Signed: true}
	fieldTGC          = mlx9064x.Field{Word: 60, Width: 8, Signed: true}
	fieldKsTa         = mlx9064x.Field{Word: 60, Shift: 8, Width: 8, Signed: true}

	fieldKsTo = [4]mlx9064x.Field{
		{Word: 61, Width: 8, Signed: true},
		{Word: 61, Shift: 8, Width: 8, Signed: true},
		{Word: 62, Width: 8, Signed: true},
		{Word: 62, Shift: 8, Width: 8, Signed: true},
	}
	fieldKsToScale  = mlx9064x.Field{Word: 63, Width: 4}
	fieldCorner2    = mlx9064x.Field{Word: 63, Shift: 4, Width: 4}
	fieldCorner3    = mlx9064x.Field{Word: 63, Shift: 8, Width: 4}
	fieldCornerStep = mlx9064x.Field{Word: 63, Shift: 12, Width: 2}

	// Per-pixel words, indexed by pixel.
	fieldPixelFlag   = mlx9064x.Field{Word: pixelBase, Width: 1}
	fieldPixelKta    = mlx9064x.Field{Word: pixelBase, Shift: 1, Width: 3, Signed: true}
	fieldPixelAlpha  = mlx9064x.Field{Word: pixelBase, Shift: 4, Width: 6, Signed: true}
	fieldPixelOffset = mlx9064x.Field{Word: pixelBase, Shift: 10, Width: 6, Signed: true}
)

// nibble returns entry i of a table of signed 4-bit values packed four to a
// word starting at base.
func nibble(base, i int) mlx9064x.Field {
	return mlx9064x.Field{Word: base + i/4, Shift: 4 * uint(i%4), Width: 4, Signed: true}
}

// class returns the parity class of pixel p: even or odd row, then even or
// odd column.
func class(p int) int {
	return 2*(p/Width%2) + p%2
}

// Calibration is the decoded MLX90640 EEPROM.
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
	tgc        float32

	corners         []int16
	ksTo            []float32
	alphaCorrection []float32

	offsets []int16
	alphas  []float32
	kvs     []float32
	ktas    []float32

	offsetCP [2]int16
	alphaCP  [2]float32
	kvCP     float32
	ktaCP    float32

	// calibratedPattern is the access pattern the offsets were measured
	// with. Reading with the other one needs the compensation below.
	calibratedPattern mlx9064x.AccessPattern
	ilChess           [3]float32
	apc               []float32

	failed   []int
	outliers []int
}

// ParseCalibration decodes an EEPROM dump read from mlx9064x.EEPROMBase.
func ParseCalibration(data []byte) (*Calibration, error) {
	ee, err := mlx9064x.Words(data)
	if err != nil {
		return nil, err
	}

	c := &Calibration{
		kVdd:       int16(32 * fieldKVdd.Get(ee)),
		vdd25:      int16((fieldVdd25.Get(ee)-256)*32 - 8192),
		resolution: mlx9064x.Resolution(fieldResolution.Get(ee)),
		kvPTAT:     float32(fieldKvPTAT.Get(ee)) / 4096,
		ktPTAT:     float32(fieldKtPTAT.Get(ee)) / 8,
		vPTAT25:    float32(fieldVPTAT25.Get(ee)),
		alphaPTAT:  float32(fieldAlphaPTAT.Get(ee))/4 + 8,
		gain:       float32(fieldGain.Get(ee)),
		ksTa:       float32(fieldKsTa.Get(ee)) / 8192,
		tgc:        float32(fieldTGC.Get(ee)) / 32,
	}
	if err := c.extractBands(ee); err != nil {
		return nil, err
	}
	for _, v := range []struct {
		name string
		v    float32
	}{{"kVdd", float32(c.kVdd)}, {"KtPTAT", c.ktPTAT}, {"gain", c.gain}} {
		if err := mlx9064x.ValidateNonZero(v.name, v.v); err != nil {
			return nil, err
		}
	}
	c.extractCP(ee)
	c.extractPixels(ee)
	c.extractAccessPattern(ee)
	return c, nil
}

func (c *Calibration) extractBands(ee []uint16) error {
	step := int16(fieldCornerStep.Get(ee) * 10)
	ct2 := int16(fieldCorner2.Get(ee)) * step
	ct3 := ct2 + int16(fieldCorner3.Get(ee))*step
	c.corners = []int16{-40, 0, ct2, ct3}

	scale := mlx9064x.Pow2(fieldKsToScale.Get(ee) + 8)
	c.ksTo = make([]float32, len(fieldKsTo))
	for i, f := range fieldKsTo {
		c.ksTo[i] = float32(f.Get(ee)) / scale
	}
	if err := mlx9064x.ValidateBands(c.corners, c.ksTo, basicTempRange); err != nil {
		return err
	}
	c.alphaCorrection = mlx9064x.AlphaCorrection(c.corners, c.ksTo, basicTempRange)
	return nil
}

func (c *Calibration) extractCP(ee []uint16) {
	alphaScale := mlx9064x.Pow2(fieldAlphaScale.Get(ee) + 27)
	c.alphaCP[0] = float32(fieldAlphaCP.Get(ee)) / alphaScale
	c.alphaCP[1] = (1 + float32(fieldAlphaCPRatio.Get(ee))/128) * c.alphaCP[0]

	c.offsetCP[0] = int16(fieldOffsetCP.Get(ee))
	c.offsetCP[1] = c.offsetCP[0] + int16(fieldOffsetCPDiff.Get(ee))

	c.ktaCP = float32(fieldKtaCP.Get(ee)) / mlx9064x.Pow2(fieldKtaScale1.Get(ee)+8)
	c.kvCP = float32(fieldKvCP.Get(ee)) / mlx9064x.Pow2(fieldKvScale.Get(ee))
}

func (c *Calibration) extractPixels(ee []uint16) {
	occRemScale := fieldOccRemScale.Get(ee)
	occColumnScale := fieldOccColumnScale.Get(ee)
	occRowScale := fieldOccRowScale.Get(ee)
	offsetRef := fieldOffsetRef.Get(ee)

	accRemScale := fieldAccRemScale.Get(ee)
	accColumnScale := fieldAccColumnScale.Get(ee)
	accRowScale := fieldAccRowScale.Get(ee)
	alphaScale := mlx9064x.Pow2(fieldAlphaScale.Get(ee) + 30)
	alphaRef := fieldAlphaRef.Get(ee)

	ktaScale1 := mlx9064x.Pow2(fieldKtaScale1.Get(ee) + 8)
	ktaScale2 := fieldKtaScale2.Get(ee)
	kvScale := mlx9064x.Pow2(fieldKvScale.Get(ee))

	c.offsets = make([]int16, NumPixels)
	c.alphas = make([]float32, NumPixels)
	c.ktas = make([]float32, NumPixels)
	c.kvs = make([]float32, NumPixels)
	for p := 0; p < NumPixels; p++ {
		row, col := p/Width, p%Width
		cl := class(p)

		offset := fieldPixelOffset.At(p).Get(ee) << occRemScale
		offset += offsetRef +
			nibble(occRowBase, row).Get(ee)<<occRowScale +
			nibble(occColumnBase, col).Get(ee)<<occColumnScale
		c.offsets[p] = int16(offset)

		alpha := fieldPixelAlpha.At(p).Get(ee) << accRemScale
		alpha += alphaRef +
			nibble(accRowBase, row).Get(ee)<<accRowScale +
			nibble(accColumnBase, col).Get(ee)<<accColumnScale
		c.alphas[p] = float32(alpha) / alphaScale

		kta := fieldPixelKta.At(p).Get(ee) << ktaScale2
		c.ktas[p] = float32(fieldKta[cl].Get(ee)+kta) / ktaScale1
		c.kvs[p] = float32(fieldKv[cl].Get(ee)) / kvScale

		switch {
		case ee[pixelBase+p] == 0:
			c.failed = append(c.failed, p)
		case fieldPixelFlag.At(p).Get(ee) != 0:
			c.outliers = append(c.outliers, p)
		}
	}
}

func (c *Calibration) extractAccessPattern(ee []uint16) {
	c.calibratedPattern = mlx9064x.Chess
	if fieldCalibrationMode.Get(ee) != 0 {
		c.calibratedPattern = mlx9064x.Interleave
	}
	c.ilChess = [3]float32{
		float32(fieldILChess0.Get(ee)) / 16,
		float32(fieldILChess1.Get(ee)) / 2,
		float32(fieldILChess2.Get(ee)) / 8,
	}

	c.apc = make([]float32, NumPixels)
	for p := range c.apc {
		il := p / Width % 2
		conv := ((p+2)/4 - (p+3)/4 + (p+1)/4 - p/4) * (1 - 2*il)
		c.apc[p] = c.ilChess[2]*float32(2*il-1) - c.ilChess[1]*float32(conv)
	}
}

// CalibratedPattern returns the access pattern the camera was calibrated
// with.
func (c *Calibration) CalibratedPattern() mlx9064x.AccessPattern {
	return c.calibratedPattern
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

// Emissivity is never stored by the MLX90640.
func (c *Calibration) Emissivity() (float32, bool) {
	return 0, false
}

func (c *Calibration) TemperatureGradient() (float32, bool) {
	return c.tgc, true
}

// Pixel coefficients are shared by both subpages.
func (c *Calibration) OffsetPixels(mlx9064x.Subpage) []int16  { return c.offsets }
func (c *Calibration) AlphaPixels(mlx9064x.Subpage) []float32 { return c.alphas }
func (c *Calibration) KvPixels(mlx9064x.Subpage) []float32    { return c.kvs }
func (c *Calibration) KtaPixels(mlx9064x.Subpage) []float32   { return c.ktas }

func (c *Calibration) OffsetCP(subpage mlx9064x.Subpage) int16  { return c.offsetCP[subpage] }
func (c *Calibration) AlphaCP(subpage mlx9064x.Subpage) float32 { return c.alphaCP[subpage] }
func (c *Calibration) KvCP(mlx9064x.Subpage) float32            { return c.kvCP }
func (c *Calibration) KtaCP(mlx9064x.Subpage) float32           { return c.ktaCP }

func (c *Calibration) AccessPatternCompensationPixels(pattern mlx9064x.AccessPattern) []float32 {
	if pattern == c.calibratedPattern {
		return nil
	}
	return c.apc
}

func (c *Calibration) AccessPatternCompensationCP(subpage mlx9064x.Subpage, pattern mlx9064x.AccessPattern) (float32, bool) {
	if pattern == c.calibratedPattern || subpage != mlx9064x.Subpage1 {
		return 0, false
	}
	return c.ilChess[0], true
}

func (c *Calibration) FailedPixels() []int  { return c.failed }
func (c *Calibration) OutlierPixels() []int { return c.outliers }

var _ mlx9064x.Calibration = &Calibration{}
