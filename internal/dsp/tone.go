package dsp

import "math"

// Tone synthesizes n samples of a complex exponential at freqHz for the given
// sample rate, with amplitude in [0, 1] of transmit full scale. The result
// feeds straight into the sink's Write path.
func Tone(freqHz, sampleRateHz, amplitude float64, n int) []complex64 {
	if n <= 0 {
		return []complex64{}
	}
	out := make([]complex64, n)
	step := 2 * math.Pi * freqHz / sampleRateHz
	for i := 0; i < n; i++ {
		phase := step * float64(i)
		out[i] = complex64(complex(amplitude*math.Cos(phase), amplitude*math.Sin(phase)))
	}
	return out
}

// ToneBin returns the DC-centered FFT bin a tone of freqHz lands on for an
// n-point transform at the given sample rate.
func ToneBin(freqHz, sampleRateHz float64, n int) int {
	bin := int(math.Round(freqHz / sampleRateHz * float64(n)))
	return bin + n/2
}
