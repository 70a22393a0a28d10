package bladerf

// NoBuffer is the out-of-band slot value exchanged with the transfer engine.
// Passed to a StreamCallback it means "no buffer just completed" (only on the
// first invocation); returned from a StreamCallback it tells the engine to
// wind down the transfer loop.
const NoBuffer = -1

// StreamConfig sizes the transfer engine's buffer arena.
type StreamConfig struct {
	// NumBuffers is the size of the buffer pool.
	NumBuffers int
	// SamplesPerBuffer is the capacity of each buffer in complex samples;
	// one sample occupies two int16 slots (I then Q).
	SamplesPerBuffer int
	// NumTransfers is how many buffers the engine may keep in flight at
	// once. Callers must keep NumTransfers <= NumBuffers/2.
	NumTransfers int
}

// StreamCallback is invoked by the transfer engine each time it needs a
// buffer to submit. The engine identifies buffers by their arena slot index,
// never by pointer. `returned` is the slot whose transfer just completed, or
// NoBuffer on the very first call. The callback returns the next slot to
// transmit, or NoBuffer to stop the loop. The callback may block.
type StreamCallback func(returned int) int

// TxStream is an initialized transmit transfer engine.
type TxStream interface {
	// Buffer exposes the engine-owned storage for one arena slot. The
	// slice remains valid until Deinit.
	Buffer(slot int) []int16

	// Run drives the transfer loop, invoking the configured callback until
	// it returns NoBuffer or a hardware error occurs. Run blocks for the
	// lifetime of the stream and is called from a dedicated goroutine.
	Run() error

	// Deinit releases the engine's buffers. The stream must not be used
	// afterwards.
	Deinit() error
}
