package mlx90641

import (
	"iter"

	"github.com/mikesmitty/mlx9064x"
)

const (
	Height    = 12
	Width     = 16
	NumPixels = Height * Width
)

// RAM layout. Pixel data is stored in blocks of blockLength words every
// blockStride words, with subpage 1 interleaved after subpage 0.
const (
	ramBase        mlx9064x.Address = 0x0400
	blockLength                     = 32
	blockStride                     = 0x40
	subpageStride                   = 0x20
	vbeAddress     mlx9064x.Address = 0x0580
	cpAddress      mlx9064x.Address = 0x0588
	gainAddress    mlx9064x.Address = 0x058A
	ptatAddress    mlx9064x.Address = 0x05A0
	vddAddress     mlx9064x.Address = 0x05AA
	selfHeating                     = 5
	basicTempRange                  = 2
)

// Camera is the MLX90641 geometry. Every subpage measures the whole array.
type Camera struct{}

func (Camera) Height() int    { return Height }
func (Camera) Width() int     { return Width }
func (Camera) NumPixels() int { return NumPixels }

func (Camera) PixelRanges(subpage mlx9064x.Subpage, _ mlx9064x.AccessPattern) iter.Seq[mlx9064x.PixelRange] {
	return func(yield func(mlx9064x.PixelRange) bool) {
		for block := 0; block < NumPixels/blockLength; block++ {
			r := mlx9064x.PixelRange{
				Start:  ramBase + mlx9064x.Address(block*blockStride+int(subpage)*subpageStride),
				Offset: block * blockLength,
				Length: blockLength,
			}
			if !yield(r) {
				return
			}
		}
	}
}

func (Camera) PixelsInSubpage(mlx9064x.Subpage, mlx9064x.AccessPattern) iter.Seq[bool] {
	return func(yield func(bool) bool) {
		for i := 0; i < NumPixels; i++ {
			if !yield(true) {
				return
			}
		}
	}
}

func (Camera) ResolutionCorrection(calibrated, current mlx9064x.Resolution) float32 {
	return mlx9064x.Pow2(int32(calibrated) - int32(current))
}

func (Camera) AmbientVBE() mlx9064x.Address                        { return vbeAddress }
func (Camera) AmbientPTAT() mlx9064x.Address                       { return ptatAddress }
func (Camera) CompensationPixel(mlx9064x.Subpage) mlx9064x.Address { return cpAddress }
func (Camera) GainRegister() mlx9064x.Address                      { return gainAddress }
func (Camera) VddPixel() mlx9064x.Address                          { return vddAddress }
func (Camera) SelfHeating() float32                                { return selfHeating }
func (Camera) BasicTemperatureRange() int                          { return basicTempRange }

var _ mlx9064x.Geometry = Camera{}
