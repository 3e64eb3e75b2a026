package mlx90640

import (
	"iter"

	"github.com/mikesmitty/mlx9064x"
)

const (
	Height    = 24
	Width     = 32
	NumPixels = Height * Width
)

// RAM layout. Pixel (row, col) is stored at ramBase + row*Width + col.
const (
	ramBase        mlx9064x.Address = 0x0400
	vbeAddress     mlx9064x.Address = 0x0700
	cp0Address     mlx9064x.Address = 0x0708
	gainAddress    mlx9064x.Address = 0x070A
	ptatAddress    mlx9064x.Address = 0x0720
	cp1Address     mlx9064x.Address = 0x0728
	vddAddress     mlx9064x.Address = 0x072A
	selfHeating                     = 8
	basicTempRange                  = 1
)

// Camera is the MLX90640 geometry. Each subpage measures half of the array,
// alternate rows in interleave mode or alternate pixels in chess mode.
type Camera struct{}

func (Camera) Height() int    { return Height }
func (Camera) Width() int     { return Width }
func (Camera) NumPixels() int { return NumPixels }

// PixelRanges reads only the rows of the subpage in interleave mode. Chess
// subpages are spread over every row, so the whole array is read.
func (Camera) PixelRanges(subpage mlx9064x.Subpage, pattern mlx9064x.AccessPattern) iter.Seq[mlx9064x.PixelRange] {
	return func(yield func(mlx9064x.PixelRange) bool) {
		if pattern == mlx9064x.Chess {
			yield(mlx9064x.PixelRange{Start: ramBase, Length: NumPixels})
			return
		}
		for row := int(subpage); row < Height; row += 2 {
			r := mlx9064x.PixelRange{
				Start:  ramBase + mlx9064x.Address(row*Width),
				Offset: row * Width,
				Length: Width,
			}
			if !yield(r) {
				return
			}
		}
	}
}

func (Camera) PixelsInSubpage(subpage mlx9064x.Subpage, pattern mlx9064x.AccessPattern) iter.Seq[bool] {
	return func(yield func(bool) bool) {
		for p := 0; p < NumPixels; p++ {
			if !yield(InSubpage(p, subpage, pattern)) {
				return
			}
		}
	}
}

// InSubpage reports whether pixel p is measured by subpage with the given
// access pattern.
func InSubpage(p int, subpage mlx9064x.Subpage, pattern mlx9064x.AccessPattern) bool {
	row, col := p/Width, p%Width
	if pattern == mlx9064x.Chess {
		return (row+col)%2 == int(subpage)
	}
	return row%2 == int(subpage)
}

func (Camera) ResolutionCorrection(calibrated, current mlx9064x.Resolution) float32 {
	return mlx9064x.Pow2(int32(calibrated) - int32(current))
}

func (Camera) AmbientVBE() mlx9064x.Address  { return vbeAddress }
func (Camera) AmbientPTAT() mlx9064x.Address { return ptatAddress }

func (Camera) CompensationPixel(subpage mlx9064x.Subpage) mlx9064x.Address {
	if subpage == mlx9064x.Subpage1 {
		return cp1Address
	}
	return cp0Address
}

func (Camera) GainRegister() mlx9064x.Address { return gainAddress }
func (Camera) VddPixel() mlx9064x.Address     { return vddAddress }
func (Camera) SelfHeating() float32           { return selfHeating }
func (Camera) BasicTemperatureRange() int     { return basicTempRange }

var _ mlx9064x.Geometry = Camera{}
