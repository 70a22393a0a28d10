package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/rjboer/GoBladeRF/bladerf"
)

// InitTxStream allocates the simulated transfer engine and its buffer arena.
func (d *Device) InitTxStream(cfg bladerf.StreamConfig, cb bladerf.StreamCallback) (bladerf.TxStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.StreamInitErr != nil {
		return nil, d.StreamInitErr
	}
	if cfg.NumBuffers < 2 {
		return nil, fmt.Errorf("need at least 2 buffers, got %d", cfg.NumBuffers)
	}
	if cfg.NumTransfers < 1 || cfg.NumTransfers > cfg.NumBuffers/2 {
		return nil, fmt.Errorf("transfer count %d out of range for %d buffers", cfg.NumTransfers, cfg.NumBuffers)
	}
	if cfg.SamplesPerBuffer < 1 {
		return nil, fmt.Errorf("samples per buffer must be positive, got %d", cfg.SamplesPerBuffer)
	}

	buffers := make([][]int16, cfg.NumBuffers)
	for i := range buffers {
		buffers[i] = make([]int16, 2*cfg.SamplesPerBuffer)
	}

	st := &TxStream{dev: d, cfg: cfg, cb: cb, buffers: buffers}
	d.stream = st
	return st, nil
}

// TxStream is the simulated transfer engine. Run drains filled buffers as
// fast as the callback supplies them, keeping up to NumTransfers slots in
// flight the way the libusb engine would.
type TxStream struct {
	dev     *Device
	cfg     bladerf.StreamConfig
	cb      bladerf.StreamCallback
	buffers [][]int16

	mu          sync.Mutex
	completed   []int    // slot completion order
	sampleCount uint64   // samples "transmitted"
	capture     bool     // record transmitted data per completed buffer
	captured    [][]int16
	deinited    bool
}

// CaptureData makes Run keep a copy of every completed buffer. Must be set
// before Run starts.
func (st *TxStream) CaptureData(on bool) {
	st.mu.Lock()
	st.capture = on
	st.mu.Unlock()
}

func (st *TxStream) Buffer(slot int) []int16 {
	return st.buffers[slot]
}

// Run models the blocking transfer loop: it tops up the in-flight window by
// asking the callback for buffers, then completes them oldest-first. The
// completed slot is handed back on the next callback invocation.
func (st *TxStream) Run() error {
	inflight := queue.New()
	pending := bladerf.NoBuffer
	completedCount := 0

	for {
		for inflight.Length() < st.cfg.NumTransfers {
			slot := st.cb(pending)
			pending = bladerf.NoBuffer
			if slot == bladerf.NoBuffer {
				// Cooperative stop; in-flight buffers are dropped,
				// as the hardware would on shutdown.
				return nil
			}
			inflight.Add(slot)
		}

		if st.dev.HoldCompletions != nil {
			<-st.dev.HoldCompletions
		}

		slot := inflight.Remove().(int)
		st.complete(slot)
		pending = slot

		completedCount++
		if st.dev.FailAfterBuffers > 0 && completedCount >= st.dev.FailAfterBuffers {
			if st.dev.StreamRunErr != nil {
				return st.dev.StreamRunErr
			}
			return errors.New("simulated transfer failure")
		}
	}
}

func (st *TxStream) complete(slot int) {
	st.mu.Lock()
	st.completed = append(st.completed, slot)
	st.sampleCount += uint64(st.cfg.SamplesPerBuffer)
	if st.capture {
		data := make([]int16, len(st.buffers[slot]))
		copy(data, st.buffers[slot])
		st.captured = append(st.captured, data)
	}
	st.mu.Unlock()
}

// Completed returns the order in which slots finished transmission.
func (st *TxStream) Completed() []int {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]int, len(st.completed))
	copy(out, st.completed)
	return out
}

// SamplesSent returns the total number of samples pushed through the engine.
func (st *TxStream) SamplesSent() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sampleCount
}

// Captured returns copies of completed buffers recorded under CaptureData.
func (st *TxStream) Captured() [][]int16 {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([][]int16, len(st.captured))
	copy(out, st.captured)
	return out
}

func (st *TxStream) Deinit() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.deinited {
		return fmt.Errorf("stream already deinitialized")
	}
	st.deinited = true
	st.buffers = nil
	return nil
}
