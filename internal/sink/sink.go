// Package sink implements the buffered transmit pipeline between a caller
// feeding complex baseband samples and the bladeRF transfer engine draining
// them. A fixed pool of engine-owned buffers is cycled between the two: the
// producer (Feed) fills slots in order and blocks when the next slot is still
// awaiting transmission; the consumer (the engine's callback) hands filled
// slots to the hardware in the same order and blocks when none is ready.
//
// All shared state is guarded by one mutex with two condition variables. The
// running flag is the sole cancellation signal; there are no timeouts, so a
// wedged hardware transfer will hold up Stop indefinitely.
package sink

import (
	"fmt"
	"sync"

	"github.com/rjboer/GoBladeRF/bladerf"
	"github.com/rjboer/GoBladeRF/internal/logging"
)

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	// BuffersFilled counts slots the producer completed.
	BuffersFilled uint64
	// BuffersSent counts slots handed to the transfer engine.
	BuffersSent uint64
}

// Sink owns one transmit stream on an opened device.
type Sink struct {
	mu         sync.Mutex
	sampAvail  *sync.Cond // a slot became filled
	bufEmptied *sync.Cond // the engine returned a slot

	numBuffers       int
	samplesPerBuffer int
	numTransfers     int

	filled    []bool
	fillSlot  int // next slot the producer writes
	drainSlot int // next slot the consumer submits

	// Producer-only write cursor; touched outside the lock.
	cur  []int16
	off  int
	left int

	running bool
	stats   Stats

	dev      bladerf.Device
	stream   bladerf.TxStream
	done     chan struct{}
	teardown sync.Once

	logger logging.Logger
}

// Start normalizes cfg, initializes the device's transfer engine, and launches
// the streaming goroutine. Engine init and TX enable failures are advisory:
// they are logged and the sink comes up stopped, so Feed returns 0 and Stop is
// still safe to call.
func Start(dev bladerf.Device, cfg Config, logger logging.Logger) *Sink {
	if logger == nil {
		logger = logging.Default()
	}

	s := &Sink{
		dev:    dev,
		done:   make(chan struct{}),
		logger: logger,
	}
	s.sampAvail = sync.NewCond(&s.mu)
	s.bufEmptied = sync.NewCond(&s.mu)

	s.numBuffers, s.samplesPerBuffer, s.numTransfers = cfg.normalize()
	s.filled = make([]bool, s.numBuffers)

	stream, err := dev.InitTxStream(bladerf.StreamConfig{
		NumBuffers:       s.numBuffers,
		SamplesPerBuffer: s.samplesPerBuffer,
		NumTransfers:     s.numTransfers,
	}, s.nextSlot)
	if err != nil {
		logger.Error("tx stream init failed", logging.Field{Key: "err", Value: err})
		close(s.done)
		return s
	}
	s.stream = stream
	s.cur = stream.Buffer(0)
	s.left = s.samplesPerBuffer

	if err := dev.EnableTx(true); err != nil {
		logger.Error("tx module enable failed", logging.Field{Key: "err", Value: err})
	}

	s.running = true
	go s.run()

	return s
}

// run hosts the blocking transfer loop. When it returns, whether by
// cancellation or hardware error, the running flag drops and both waits are
// woken: this is the single path by which an engine error reaches the
// producer.
func (s *Sink) run() {
	if err := s.stream.Run(); err != nil {
		s.logger.Error("tx stream error", logging.Field{Key: "err", Value: err})
	}

	s.mu.Lock()
	s.running = false
	s.sampAvail.Broadcast()
	s.bufEmptied.Broadcast()
	s.mu.Unlock()

	close(s.done)
}

// Feed converts and queues samples for transmission, blocking while the pool
// is full. It returns the number of samples actually consumed: len(samples)
// in normal operation, a partial count if the stream shut down mid-call, and
// 0 if the sink was already stopped on entry.
func (s *Sink) Feed(samples []complex64) int {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	consumed := 0
	for running && consumed < len(samples) {
		// Byte conversion happens outside the lock; only Feed touches
		// the write cursor.
		for s.left > 0 && consumed < len(samples) {
			convertSample(samples[consumed], s.cur[s.off:s.off+2])
			s.off += 2
			s.left--
			consumed++
		}

		if s.left == 0 {
			s.mu.Lock()
			s.filled[s.fillSlot] = true
			s.fillSlot = (s.fillSlot + 1) % s.numBuffers
			s.cur = s.stream.Buffer(s.fillSlot)
			s.off = 0
			s.left = s.samplesPerBuffer
			s.stats.BuffersFilled++
			s.sampAvail.Signal()

			// The callback signals when it frees up a buffer.
			for s.filled[s.fillSlot] && s.running {
				s.bufEmptied.Wait()
			}
			running = s.running
			s.mu.Unlock()
		}
	}

	return consumed
}

// nextSlot is the transfer-engine callback. It acknowledges the slot whose
// transfer just completed and blocks until the next filled slot is available,
// or returns NoBuffer once the stream is shutting down.
func (s *Sink) nextSlot(returned int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if returned != bladerf.NoBuffer {
		if returned < 0 || returned >= s.numBuffers {
			panic(fmt.Sprintf("sink: engine returned slot %d outside pool of %d", returned, s.numBuffers))
		}
		s.filled[returned] = false
		s.bufEmptied.Signal()
	}

	for s.running && !s.filled[s.drainSlot] {
		s.sampAvail.Wait()
	}

	if !s.running {
		return bladerf.NoBuffer
	}

	slot := s.drainSlot
	s.drainSlot = (s.drainSlot + 1) % s.numBuffers
	s.stats.BuffersSent++
	return slot
}

// Stop shuts the pipeline down: it drops the running flag and wakes both
// waits in one critical section (a blocked Feed or callback observes the flag
// and exits), waits for the streaming goroutine, then disables the TX module
// and releases the engine. Safe to call more than once, and safe after the
// stream has already ended on its own.
func (s *Sink) Stop() {
	s.mu.Lock()
	s.running = false
	s.sampAvail.Broadcast()
	s.bufEmptied.Broadcast()
	s.mu.Unlock()

	<-s.done

	s.teardown.Do(func() {
		if err := s.dev.EnableTx(false); err != nil {
			s.logger.Error("tx module disable failed", logging.Field{Key: "err", Value: err})
		}
		if s.stream != nil {
			if err := s.stream.Deinit(); err != nil {
				s.logger.Error("tx stream deinit failed", logging.Field{Key: "err", Value: err})
			}
		}
	})
}

// Running reports whether the stream is still live.
func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a snapshot of the pipeline counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// NumBuffers returns the effective pool size after normalization.
func (s *Sink) NumBuffers() int { return s.numBuffers }

// SamplesPerBuffer returns the effective per-slot capacity in samples.
func (s *Sink) SamplesPerBuffer() int { return s.samplesPerBuffer }

// NumTransfers returns the effective in-flight transfer window.
func (s *Sink) NumTransfers() int { return s.numTransfers }
