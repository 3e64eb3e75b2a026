package mlx90641

import (
	"math/bits"

	"github.com/mikesmitty/mlx9064x"
)

// DataMask selects the payload bits of an EEPROM word. Bits 11 to 15 hold
// the check bits.
const DataMask uint16 = 0x07FF

// Parity groups. Groups 0 to 3 each cover a subset of the payload plus their
// own check bit (11 to 14); group 4 covers the whole word, with bit 15 as its
// check bit.
var parityGroups = [5]uint16{
	0x0D5B, // 0, 1, 3, 4, 6, 8, 10, 11
	0x166D, // 0, 2, 3, 5, 6, 9, 10, 12
	0x278E, // 1, 2, 3, 7, 8, 9, 10, 13
	0x47F0, // 4 to 10, 14
	0xFFFF,
}

const overallParity = 1 << 4

// syndromeBit maps a syndrome with the overall parity bit set to the word
// bit that produced it.
var syndromeBit = func() (t [32]int8) {
	for i := range t {
		t[i] = -1
	}
	for b := 0; b < 16; b++ {
		var s int
		for g, mask := range parityGroups {
			if mask&(1<<b) != 0 {
				s |= 1 << g
			}
		}
		t[s] = int8(b)
	}
	return t
}()

func syndrome(word uint16) int {
	var s int
	for g, mask := range parityGroups {
		s |= (bits.OnesCount16(word&mask) & 1) << g
	}
	return s
}

// Decode checks word and returns its payload. A single flipped bit is
// corrected; two flipped bits are reported as a *mlx9064x.ChecksumError
// whose Address is left for the caller to fill in.
func Decode(word uint16) (uint16, error) {
	s := syndrome(word)
	if s == 0 {
		return word & DataMask, nil
	}
	if s&overallParity == 0 || syndromeBit[s] < 0 {
		return 0, &mlx9064x.ChecksumError{Word: word}
	}
	return (word ^ 1<<syndromeBit[s]) & DataMask, nil
}

// AddChecksum returns payload with its check bits set.
func AddChecksum(payload uint16) (uint16, error) {
	if payload&^DataMask != 0 {
		return 0, &mlx9064x.InvalidDataError{What: "checksum payload bits", Got: bits.Len16(payload), Want: 11}
	}
	word := payload
	for g := 0; g < 4; g++ {
		if bits.OnesCount16(word&parityGroups[g])&1 != 0 {
			word |= 1 << (11 + g)
		}
	}
	if bits.OnesCount16(word)&1 != 0 {
		word |= 1 << 15
	}
	return word, nil
}

// decodeWords replaces every protected word with its payload.
func decodeWords(words []uint16) error {
	for i := protectedStart; i < len(words); i++ {
		payload, err := Decode(words[i])
		if err != nil {
			err.(*mlx9064x.ChecksumError).Address = mlx9064x.EEPROMBase + mlx9064x.Address(i)
			return err
		}
		words[i] = payload
	}
	return nil
}
