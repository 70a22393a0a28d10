package sink

// Defaults used when a tunable is unset or out of range.
const (
	DefaultNumBuffers       = 32
	DefaultSamplesPerBuffer = 4096
)

const bytesPerSample = 2 * 2 // SC16_Q12: int16 I + int16 Q

// Config carries the user-facing stream tunables, normally taken straight
// from the construction params dict. Zero values mean "use the default".
type Config struct {
	// NumBuffers is the requested size of the transfer buffer pool.
	NumBuffers int
	// BufferBytes is the requested per-buffer length in bytes; it is
	// converted to samples during normalization.
	BufferBytes int
	// NumTransfers is the requested in-flight transfer window.
	NumTransfers int
}

// normalize validates the tunables and returns the effective pool geometry.
//
// NumBuffers must be at least 2 so the transfer clamp below can guarantee an
// idle buffer per in-flight one; anything smaller falls back to the default.
// BufferBytes converts to samples and must come out as a positive multiple of
// 1024. NumTransfers is clamped to half the pool: the engine can then never
// hold more buffers in flight than the producer has left to fill.
func (c Config) normalize() (numBuffers, samplesPerBuffer, numTransfers int) {
	numBuffers = c.NumBuffers
	if numBuffers <= 1 {
		numBuffers = DefaultNumBuffers
	}

	if c.BufferBytes == 0 {
		samplesPerBuffer = DefaultSamplesPerBuffer
	} else {
		samplesPerBuffer = c.BufferBytes / bytesPerSample
		if samplesPerBuffer < 1024 || samplesPerBuffer%1024 != 0 {
			samplesPerBuffer = DefaultSamplesPerBuffer
		}
	}

	numTransfers = c.NumTransfers
	if numTransfers <= 0 || numTransfers > numBuffers/2 {
		numTransfers = numBuffers / 2
	}

	return numBuffers, samplesPerBuffer, numTransfers
}
