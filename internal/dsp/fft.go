package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// dacFullScale matches the SC16_Q12 transmit scale factor: a sample with
// magnitude 2000 hits DAC full scale, so dBFS is referenced against it.
const dacFullScale = 2000.0

// FFTShift returns the FFT output shifted so that DC is centered.
func FFTShift(data []complex128) []complex128 {
	n := len(data)
	if n == 0 {
		return []complex128{}
	}
	half := n / 2
	shifted := append(data[half:], data[:half]...)
	return shifted
}

// FFTAndDBFS performs an FFT on the provided complex64 samples, applies a
// Hamming window, normalizes by the window sum, and converts the magnitude to
// dBFS relative to the DAC full scale.
func FFTAndDBFS(samples []complex64) ([]complex128, []float64) {
	if len(samples) == 0 {
		return []complex128{}, []float64{}
	}
	win := Hamming(len(samples))
	windowed := ApplyWindow(samples, win)
	fft := fourier.NewCmplxFFT(len(samples)).Coefficients(nil, windowed)
	sumWin := 0.0
	for _, v := range win {
		sumWin += v
	}
	for i := range fft {
		fft[i] /= complex(sumWin, 0)
	}
	shifted := FFTShift(fft)
	dbfs := make([]float64, len(shifted))
	for i, v := range shifted {
		mag := cmplx.Abs(v)
		if mag == 0 {
			dbfs[i] = -math.Inf(1)
			continue
		}
		dbfs[i] = 20 * math.Log10(mag/dacFullScale)
	}
	return shifted, dbfs
}

// PeakBin returns the index of the strongest bin in a DC-centered spectrum,
// or -1 for empty input.
func PeakBin(dbfs []float64) int {
	peak := -1
	peakVal := math.Inf(-1)
	for i, v := range dbfs {
		if v > peakVal {
			peakVal = v
			peak = i
		}
	}
	return peak
}
