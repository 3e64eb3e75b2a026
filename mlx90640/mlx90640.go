// Package mlx90640 drives the Melexis MLX90640, a 32x24 pixel thermal camera
// with a 55° or 110° field of view.
package mlx90640

import (
	"github.com/mikesmitty/mlx9064x"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Dev is an MLX90640 camera.
type Dev = mlx9064x.Dev[Camera]

var _ physic.SenseEnv = &Dev{}

// New opens the camera at addr on b and reads its calibration.
func New(b i2c.Bus, addr uint16, opts *mlx9064x.Opts) (*Dev, error) {
	return mlx9064x.NewDev[Camera](b, addr, "MLX90640", parse, opts)
}

func parse(data []byte) (mlx9064x.Calibration, error) {
	cal, err := ParseCalibration(data)
	if err != nil {
		return nil, err
	}
	return cal, nil
}
