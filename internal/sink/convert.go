package sink

// txScale is the SC16_Q12 full-scale factor applied to both components.
const txScale = 2000

// convertSample writes one complex baseband sample into dst as interleaved
// signed 16-bit I then Q, truncating toward zero. There is deliberately no
// clamping: inputs outside ±1 full scale wrap around on the int16 conversion.
// The int32 intermediate pins that wrap behavior down, since a float-to-int16
// conversion of an out-of-range value is otherwise implementation-defined.
func convertSample(c complex64, dst []int16) {
	dst[0] = int16(int32(real(c) * txScale))
	dst[1] = int16(int32(imag(c) * txScale))
}
