// Package sim provides a software bladeRF that satisfies the device-access
// contract in package bladerf. It keeps register state in memory, models the
// transfer engine's in-flight window, and supports failure injection, so the
// sink pipeline and the graph-facing block can be exercised end to end
// without hardware.
package sim

import (
	"fmt"
	"sync"

	"github.com/rjboer/GoBladeRF/bladerf"
)

// Supported analog filter bandwidths in Hz; setters snap to the nearest one,
// mirroring the LMS6002D filter bank.
var filterBandwidths = []uint32{
	1_500_000, 1_750_000, 2_500_000, 2_750_000, 3_000_000, 3_840_000,
	5_000_000, 5_500_000, 6_000_000, 7_000_000, 8_750_000, 10_000_000,
	12_000_000, 14_000_000, 20_000_000, 28_000_000,
}

// Device is an in-memory bladeRF. The zero value is not usable; construct
// with NewDevice or Open. Failure-injection fields may be set before the
// corresponding call is made.
type Device struct {
	mu sync.Mutex

	serial         string
	fwVersion      bladerf.Version
	fpgaVersion    bladerf.Version
	fpgaConfigured bool

	sampleRate uint32
	frequency  uint32
	bandwidth  uint32
	vga1       int
	vga2       int
	txEnabled  bool
	closed     bool

	// RegisterErr, when set, is returned from every register accessor.
	RegisterErr error
	// FlashErr / LoadErr force firmware flash / FPGA load failures.
	FlashErr error
	LoadErr  error
	// StreamInitErr forces InitTxStream to fail.
	StreamInitErr error
	// FailAfterBuffers makes the transfer loop abort with StreamRunErr
	// after that many completed buffers. Zero disables the injection.
	FailAfterBuffers int
	StreamRunErr     error
	// HoldCompletions, when non-nil, stalls the transfer loop before each
	// completion until the channel is closed, modeling stuck hardware.
	HoldCompletions chan struct{}

	stream *TxStream
}

// Stream returns the transfer engine created by InitTxStream, for assertions.
func (d *Device) Stream() *TxStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

// NewDevice returns a simulated device in its power-on state with the FPGA
// already configured.
func NewDevice() *Device {
	return &Device{
		serial:         "9b0c1f4ce5sim001",
		fwVersion:      bladerf.Version{Major: 1, Minor: 9},
		fpgaVersion:    bladerf.Version{Major: 0, Minor: 11},
		fpgaConfigured: true,
		sampleRate:     4_000_000,
		frequency:      1_000_000_000,
		bandwidth:      1_500_000,
		vga1:           -14,
		vga2:           0,
	}
}

// Open satisfies bladerf.Opener. Every index yields a fresh simulated board
// whose serial encodes the index.
func Open(index uint) (bladerf.Device, error) {
	d := NewDevice()
	d.serial = fmt.Sprintf("9b0c1f4ce5sim%03d", index)
	return d, nil
}

func (d *Device) Serial() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return "", d.RegisterErr
	}
	return d.serial, nil
}

func (d *Device) FirmwareVersion() (bladerf.Version, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return bladerf.Version{}, d.RegisterErr
	}
	return d.fwVersion, nil
}

func (d *Device) FPGAVersion() (bladerf.Version, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return bladerf.Version{}, d.RegisterErr
	}
	return d.fpgaVersion, nil
}

func (d *Device) IsFPGAConfigured() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return false, d.RegisterErr
	}
	return d.fpgaConfigured, nil
}

// SetFPGAConfigured overrides the FPGA state, for tests exercising the
// construction-fatal path.
func (d *Device) SetFPGAConfigured(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fpgaConfigured = ok
}

func (d *Device) FlashFirmware(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FlashErr != nil {
		return d.FlashErr
	}
	if path == "" {
		return fmt.Errorf("empty firmware image path")
	}
	return nil
}

func (d *Device) LoadFPGA(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.LoadErr != nil {
		return d.LoadErr
	}
	if path == "" {
		return fmt.Errorf("empty FPGA bitstream path")
	}
	d.fpgaConfigured = true
	return nil
}

func (d *Device) SetSampleRate(rateHz uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	d.sampleRate = rateHz
	return d.sampleRate, nil
}

func (d *Device) SampleRate() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	return d.sampleRate, nil
}

func (d *Device) SetFrequency(hz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return d.RegisterErr
	}
	d.frequency = hz
	return nil
}

func (d *Device) Frequency() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	return d.frequency, nil
}

func (d *Device) SetBandwidth(hz uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	d.bandwidth = nearestBandwidth(hz)
	return d.bandwidth, nil
}

func (d *Device) Bandwidth() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	return d.bandwidth, nil
}

func (d *Device) SetTxVGA1(gainDB int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return d.RegisterErr
	}
	d.vga1 = gainDB
	return nil
}

func (d *Device) TxVGA1() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	return d.vga1, nil
}

func (d *Device) SetTxVGA2(gainDB int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return d.RegisterErr
	}
	d.vga2 = gainDB
	return nil
}

func (d *Device) TxVGA2() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return 0, d.RegisterErr
	}
	return d.vga2, nil
}

func (d *Device) EnableTx(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return d.RegisterErr
	}
	d.txEnabled = enable
	return nil
}

// TxEnabled reports the transmit module state, for assertions.
func (d *Device) TxEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txEnabled
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("device already closed")
	}
	d.closed = true
	return nil
}

func nearestBandwidth(hz uint32) uint32 {
	best := filterBandwidths[0]
	var bestDiff uint32 = ^uint32(0)
	for _, bw := range filterBandwidths {
		diff := bw - hz
		if bw < hz {
			diff = hz - bw
		}
		if diff < bestDiff {
			bestDiff = diff
			best = bw
		}
	}
	return best
}
