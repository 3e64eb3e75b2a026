package mlx9064x

import "math"

// Reference conditions of the factory calibration.
const (
	ReferenceVoltage     float32 = 3.3
	ReferenceTemperature float32 = 25
	DefaultEmissivity    float32 = 0.95

	kelvinOffset float32 = 273.15
)

// RawFrame is one subpage as read from the camera RAM. All readings are the
// raw register values; signed quantities are reinterpreted by the converter.
type RawFrame struct {
	Subpage       Subpage
	AccessPattern AccessPattern
	Resolution    Resolution

	// Pixels holds one reading per pixel in row-major order. Only pixels in
	// Subpage are meaningful.
	Pixels []uint16

	VBE               uint16
	PTAT              uint16
	Gain              uint16
	Vdd               uint16
	CompensationPixel uint16
}

// SupplyVoltage computes the supply voltage from the VDD pixel reading.
func SupplyVoltage[G Geometry](g G, cal Calibration, current Resolution, raw uint16) float32 {
	corr := g.ResolutionCorrection(cal.Resolution(), current)
	return (corr*float32(int16(raw))-float32(cal.Vdd25()))/float32(cal.KVdd()) + ReferenceVoltage
}

// AmbientTemperature computes the die temperature from the PTAT and VBE
// readings at the given supply voltage.
func AmbientTemperature(cal Calibration, vdd float32, rawPTAT, rawVBE uint16) float32 {
	ptat := float32(int16(rawPTAT))
	vbe := float32(int16(rawVBE))
	art := ptat / (ptat*cal.AlphaPTAT() + vbe) * (1 << 18)
	ta := art/(1+cal.KvPTAT()*(vdd-ReferenceVoltage)) - cal.VPTAT25()
	return ta/cal.KtPTAT() + ReferenceTemperature
}

// Convert computes the temperature of every pixel of frame's subpage and
// stores it into out, which must hold exactly one entry per pixel. Pixels of
// the other subpage are left untouched and failed pixels are set to NaN. The
// ambient temperature is returned.
func Convert[G Geometry](g G, cal Calibration, frame *RawFrame, emissivity float32, out []float32) (float32, error) {
	n := g.NumPixels()
	if len(out) != n {
		return 0, &InvalidDataError{What: "temperature buffer", Got: len(out), Want: n}
	}
	if len(frame.Pixels) != n {
		return 0, &InvalidDataError{What: "raw frame", Got: len(frame.Pixels), Want: n}
	}
	subpage := frame.Subpage
	pattern := frame.AccessPattern

	vdd := SupplyVoltage(g, cal, frame.Resolution, frame.Vdd)
	ta := AmbientTemperature(cal, vdd, frame.PTAT, frame.VBE)
	dV := vdd - ReferenceVoltage
	dTa := ta - ReferenceTemperature

	gain := cal.Gain() / float32(int16(frame.Gain))

	cpOffset := float32(cal.OffsetCP(subpage))
	if c, ok := cal.AccessPatternCompensationCP(subpage, pattern); ok {
		cpOffset += c
	}
	cp := float32(int16(frame.CompensationPixel))*gain -
		cpOffset*(1+cal.KtaCP(subpage)*dTa)*(1+cal.KvCP(subpage)*dV)

	tgc, _ := cal.TemperatureGradient()
	tr := ta - g.SelfHeating()
	ta4 := kelvin4(ta)
	tr4 := kelvin4(tr)
	taTr := tr4 - (tr4-ta4)/emissivity

	bands := bandTable{
		corners: cal.CornerTemperatures(),
		ksTo:    cal.KsTo(),
		corr:    cal.AlphaCorrection(),
		basic:   g.BasicTemperatureRange(),
	}
	ksTa := cal.KsTa()
	alphaCP := cal.AlphaCP(subpage)
	offsets := cal.OffsetPixels(subpage)
	alphas := cal.AlphaPixels(subpage)
	kvs := cal.KvPixels(subpage)
	ktas := cal.KtaPixels(subpage)
	apc := cal.AccessPatternCompensationPixels(pattern)
	failed := cal.FailedPixels()

	p, f := 0, 0
	for member := range g.PixelsInSubpage(subpage, pattern) {
		pixel := p
		p++
		if !member {
			continue
		}
		for f < len(failed) && failed[f] < pixel {
			f++
		}
		if f < len(failed) && failed[f] == pixel {
			out[pixel] = float32(math.NaN())
			continue
		}
		ir := float32(int16(frame.Pixels[pixel])) * gain
		ir -= float32(offsets[pixel]) * (1 + ktas[pixel]*dTa) * (1 + kvs[pixel]*dV)
		if apc != nil {
			ir += apc[pixel]
		}
		ir -= tgc * cp
		ir /= emissivity

		alpha := (alphas[pixel] - tgc*alphaCP) * (1 + ksTa*dTa)
		out[pixel] = bands.objectTemperature(ir, alpha, taTr)
	}
	return ta, nil
}

type bandTable struct {
	corners []int16
	ksTo    []float32
	corr    []float32
	basic   int
}

// objectTemperature estimates the temperature with the basic band's
// coefficients, then recomputes it with the band the estimate falls in.
func (b *bandTable) objectTemperature(ir, alpha, taTr float32) float32 {
	ks := b.ksTo[b.basic]
	sx := ks * root4(alpha*alpha*alpha*(ir+alpha*taTr))
	to := root4(ir/(alpha*(1-ks*kelvinOffset)+sx)+taTr) - kelvinOffset

	band := b.band(to)
	to = root4(ir/(alpha*b.corr[band]*(1+b.ksTo[band]*(to-float32(b.corners[band]))))+taTr) - kelvinOffset
	return to
}

// band returns the index of the band containing t. Temperatures below the
// first corner fall in band 0.
func (b *bandTable) band(t float32) int {
	band := 0
	for i := 1; i < len(b.corners); i++ {
		if t >= float32(b.corners[i]) {
			band = i
		}
	}
	return band
}

func kelvin4(t float32) float32 {
	k := t + kelvinOffset
	k *= k
	return k * k
}

func root4(x float32) float32 {
	return float32(math.Sqrt(math.Sqrt(float64(x))))
}
