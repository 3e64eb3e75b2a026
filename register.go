package mlx9064x

import "fmt"

// Address is a 16-bit register or memory address on the camera.
type Address uint16

// Bytes returns the big-endian encoding of the address, as written on the bus
// before every read or write.
func (a Address) Bytes() []byte {
	return []byte{byte(a >> 8), byte(a)}
}

func (a Address) String() string {
	return fmt.Sprintf("0x%04X", uint16(a))
}

// Subpage identifies one of the two readout passes that together form a frame.
type Subpage uint8

const (
	Subpage0 Subpage = iota
	Subpage1
)

// Subpages lists both subpages in readout order.
var Subpages = [2]Subpage{Subpage0, Subpage1}

// AccessPattern is the pixel-to-subpage assignment the camera uses.
type AccessPattern uint8

const (
	// Interleave assigns alternating rows to alternating subpages.
	Interleave AccessPattern = iota
	// Chess assigns pixels in a checkerboard.
	Chess
)

func (p AccessPattern) String() string {
	switch p {
	case Interleave:
		return "interleave"
	case Chess:
		return "chess"
	default:
		return fmt.Sprintf("AccessPattern(%d)", uint8(p))
	}
}

// Resolution is the ADC resolution setting, 16 to 19 bits.
type Resolution uint8

const (
	Resolution16 Resolution = iota
	Resolution17
	Resolution18
	Resolution19
)

// Bits returns the number of ADC bits the setting selects.
func (r Resolution) Bits() int {
	return int(r) + 16
}

// RefreshRate is the frame rate setting of the camera.
type RefreshRate uint8

const (
	RefreshRateHalfHz RefreshRate = iota
	RefreshRate1Hz
	RefreshRate2Hz
	RefreshRate4Hz
	RefreshRate8Hz
	RefreshRate16Hz
	RefreshRate32Hz
	RefreshRate64Hz
)

// Hertz returns the number of subpages measured per second.
func (r RefreshRate) Hertz() float32 {
	return float32(uint32(1)<<r) / 2
}

// Registers shared by every variant.
const (
	StatusRegister  Address = 0x8000
	ControlRegister Address = 0x800D
)

// Status register fields.
const (
	statusSubpageMask uint16 = 0x0007
	statusDataReady   uint16 = 0x0008
)

// Control register fields.
const (
	controlRefreshShift    = 7
	controlRefreshMask     = 0x0380
	controlResolutionShift = 10
	controlResolutionMask  = 0x0C00
	controlPatternShift    = 12
	controlPatternMask     = 0x1000
)

// statusSubpage extracts the last measured subpage from a status word.
func statusSubpage(status uint16) (Subpage, error) {
	sp := status & statusSubpageMask
	if sp > uint16(Subpage1) {
		return 0, &StatusError{Status: status}
	}
	return Subpage(sp), nil
}

// controlSettings holds the decoded fields of the control register.
type controlSettings struct {
	pattern    AccessPattern
	resolution Resolution
	rate       RefreshRate
}

func parseControl(control uint16) controlSettings {
	return controlSettings{
		pattern:    AccessPattern((control & controlPatternMask) >> controlPatternShift),
		resolution: Resolution((control & controlResolutionMask) >> controlResolutionShift),
		rate:       RefreshRate((control & controlRefreshMask) >> controlRefreshShift),
	}
}

func setControlField(control, mask uint16, shift uint, value uint16) uint16 {
	return control&^mask | (value<<shift)&mask
}
