package mlx9064x

import (
	"encoding/binary"
	"math"
	"strconv"
)

// EEPROM window shared by every variant.
const (
	EEPROMBase   Address = 0x2400
	EEPROMWords          = 0x2740 - 0x2400
	EEPROMLength         = EEPROMWords * 2
)

// Field is one bit slice of an EEPROM word. Variant packages describe their
// memory layout as tables of Fields.
type Field struct {
	Word   int
	Shift  uint
	Width  uint
	Signed bool
}

func (f Field) mask() uint16 {
	return uint16((uint32(1)<<f.Width)-1) << f.Shift
}

// At returns the same field n words further, for tables and per-pixel
// arrays.
func (f Field) At(n int) Field {
	f.Word += n
	return f
}

// Get extracts the field from words, sign-extending it when Signed is set.
func (f Field) Get(words []uint16) int32 {
	v := int32((words[f.Word] & f.mask()) >> f.Shift)
	if f.Signed && v >= int32(1)<<(f.Width-1) {
		v -= int32(1) << f.Width
	}
	return v
}

// Put stores v into the field, leaving the other bits of the word untouched.
func (f Field) Put(words []uint16, v int32) {
	words[f.Word] = words[f.Word]&^f.mask() | (uint16(v)<<f.Shift)&f.mask()
}

// Words converts a big-endian EEPROM dump into words.
func Words(data []byte) ([]uint16, error) {
	if len(data) != EEPROMLength {
		return nil, &InvalidDataError{What: "EEPROM dump", Got: len(data), Want: EEPROMLength}
	}
	words := make([]uint16, EEPROMWords)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return words, nil
}

// Bytes is the inverse of Words.
func Bytes(words []uint16) []byte {
	data := make([]byte, 2*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(data[2*i:], w)
	}
	return data
}

// Pow2 returns 2^n as a float32.
func Pow2(n int32) float32 {
	return float32(math.Ldexp(1, int(n)))
}

// AlphaCorrection computes the sensitivity correction of every temperature
// band relative to the band at index basic.
func AlphaCorrection(corners []int16, ksTo []float32, basic int) []float32 {
	corr := make([]float32, len(corners))
	corr[basic] = 1
	for i := basic + 1; i < len(corners); i++ {
		corr[i] = corr[i-1] * (1 + ksTo[i-1]*float32(corners[i]-corners[i-1]))
	}
	for i := basic - 1; i >= 0; i-- {
		corr[i] = corr[i+1] / (1 + ksTo[i]*float32(corners[i+1]-corners[i]))
	}
	return corr
}

// ValidateBands checks that the corner temperatures strictly increase and
// that there is one KsTo coefficient per band.
func ValidateBands(corners []int16, ksTo []float32, basic int) error {
	if len(corners) != len(ksTo) {
		return &ConfigurationError{Field: "KsTo", Reason: "count does not match corner temperatures"}
	}
	if basic < 0 || basic >= len(corners) {
		return &ConfigurationError{Field: "corner temperatures", Reason: "do not include the basic range"}
	}
	for i := 1; i < len(corners); i++ {
		if corners[i] <= corners[i-1] {
			return &ConfigurationError{
				Field:  "corner temperature " + strconv.Itoa(i),
				Reason: "is not above the previous corner",
			}
		}
	}
	return nil
}

// ValidateNonZero reports a ConfigurationError for a coefficient the
// conversion divides by.
func ValidateNonZero(field string, v float32) error {
	if v == 0 {
		return &ConfigurationError{Field: field, Reason: "is zero"}
	}
	return nil
}
