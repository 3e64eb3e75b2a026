// Package mlx90642 drives the Melexis MLX90642. The camera shares the
// geometry and memory layout of the MLX90641 but may store its calibration
// without check bits.
package mlx90642

import (
	"github.com/mikesmitty/mlx9064x"
	"github.com/mikesmitty/mlx9064x/mlx90641"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Camera is the MLX90642 geometry.
type Camera struct {
	mlx90641.Camera
}

var _ mlx9064x.Geometry = Camera{}

// Dev is an MLX90642 camera.
type Dev = mlx9064x.Dev[Camera]

var _ physic.SenseEnv = &Dev{}

// New opens the camera at addr on b and reads its calibration.
func New(b i2c.Bus, addr uint16, opts *mlx9064x.Opts) (*Dev, error) {
	var log mlx9064x.Logger
	if opts != nil {
		log = opts.Logger
	}
	parse := func(data []byte) (mlx9064x.Calibration, error) {
		cal, err := ParseCalibration(data)
		if err != nil {
			return nil, err
		}
		if cal.Synthesized() && log != nil {
			log.Infof("mlx90642: EEPROM carries no check bits, synthesized them")
		}
		return cal, nil
	}
	return mlx9064x.NewDev[Camera](b, addr, "MLX90642", parse, opts)
}
