package sensortest

// Pixels of MLX90641Payloads with special calibration: the failed pixel has
// zero sensitivity, the outlier a clipped offset.
const (
	MLX90641FailedPixel  = 10
	MLX90641OutlierPixel = 20
)

// MLX90641Payloads returns the 11-bit payloads of a plausible MLX90641
// EEPROM, without check bits. The calibration has no supply, ambient or
// range dependence, gain 6000, VDD 3.3V at a reading of -12000, and an
// 18-bit calibrated resolution.
func MLX90641Payloads() []uint16 {
	ee := make([]uint16, 832)
	ee[17], ee[18] = 2046, 14 // offset reference -50
	for w := 25; w <= 27; w++ {
		ee[w] = 10<<5 | 10 // row alpha scales
	}
	for w := 28; w <= 33; w++ {
		ee[w] = 2047 // row max alpha
	}
	ee[36], ee[37] = 187, 16 // gain 6000
	ee[38] = 2048 - 375      // vdd25 -12000
	ee[39] = 2048 - 100      // kVdd -3200
	ee[40], ee[41] = 381, 8  // vPTAT25 12200
	ee[42] = 336             // ktPTAT 42
	ee[43] = 8               // kvPTAT 8/4096
	ee[44] = 1152            // alphaPTAT 9
	ee[45], ee[46] = 400, 27 // alphaCP 400/2^27
	ee[47], ee[48] = 2046, 4 // offsetCP -60
	ee[51] = 2 << 9          // resolution 18, TGC 0
	ee[52] = 17              // ksTo scale
	ee[58], ee[60], ee[62] = 200, 400, 600

	for p := 0; p < 192; p++ {
		ee[64+p] = uint16(p%7 + 1)
		ee[256+p] = uint16(1000 + p%50)
		ee[640+p] = uint16(p%5 + 2)
	}
	for _, base := range []int{64, 256, 448, 640} {
		ee[base+MLX90641FailedPixel] = 0
	}
	ee[64+MLX90641OutlierPixel] = 1023 // clipped subpage 0 offset
	return ee
}
