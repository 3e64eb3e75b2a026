package mlx90642

import (
	"github.com/mikesmitty/mlx9064x"
	"github.com/mikesmitty/mlx9064x/mlx90641"
)

// Calibration is the decoded MLX90642 EEPROM.
type Calibration struct {
	*mlx90641.Calibration
	synthesized bool
}

var _ mlx9064x.Calibration = &Calibration{}

// Synthesized reports whether the dump had no valid check bits and they were
// computed from the payloads.
func (c *Calibration) Synthesized() bool {
	return c.synthesized
}

// ParseCalibration decodes an EEPROM dump read from mlx9064x.EEPROMBase.
//
// The dump is first decoded as an MLX90641 EEPROM. If that fails on a
// checksum, check bits are computed for every word and the decode is retried
// once. Any other failure is returned as is.
func ParseCalibration(data []byte) (*Calibration, error) {
	if len(data) != mlx9064x.EEPROMLength {
		return nil, &mlx9064x.InvalidDataError{What: "EEPROM dump", Got: len(data), Want: mlx9064x.EEPROMLength}
	}
	cal, err := mlx90641.ParseCalibration(data)
	if err == nil {
		return &Calibration{Calibration: cal}, nil
	}
	if !mlx9064x.IsChecksumError(err) {
		return nil, err
	}

	encoded, err := addChecksums(data)
	if err != nil {
		return nil, err
	}
	cal, err = mlx90641.ParseCalibration(encoded)
	if err != nil {
		return nil, err
	}
	return &Calibration{Calibration: cal, synthesized: true}, nil
}

// addChecksums treats every word of data as a bare payload and returns the
// dump with check bits added.
func addChecksums(data []byte) ([]byte, error) {
	words, err := mlx9064x.Words(data)
	if err != nil {
		return nil, err
	}
	for i, w := range words {
		if words[i], err = mlx90641.AddChecksum(w & mlx90641.DataMask); err != nil {
			return nil, err
		}
	}
	return mlx9064x.Bytes(words), nil
}
