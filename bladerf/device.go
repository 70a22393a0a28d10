// Package bladerf declares the device-access contract for a Nuand bladeRF
// transmit path. The package contains no driver code: a hardware backend
// (libbladeRF via cgo, or a network-attached device server) and the in-process
// simulator both satisfy these interfaces, so everything above this layer can
// be exercised without a board on the bench.
package bladerf

import "fmt"

// Version identifies a firmware or FPGA image revision.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}

// Device is a handle to one opened bladeRF. All register accessors are
// round-trips: setters that report an "actual" value return what the hardware
// applied, which may differ from the request.
//
// Errors from setters/getters are operation-fatal for that call only; the
// device remains usable.
type Device interface {
	// Identity and diagnostics.
	Serial() (string, error)
	FirmwareVersion() (Version, error)
	FPGAVersion() (Version, error)
	IsFPGAConfigured() (bool, error)

	// Image management.
	FlashFirmware(path string) error
	LoadFPGA(path string) error

	// TX register access.
	SetSampleRate(rateHz uint32) (actual uint32, err error)
	SampleRate() (uint32, error)
	SetFrequency(hz uint32) error
	Frequency() (uint32, error)
	SetBandwidth(hz uint32) (actual uint32, err error)
	Bandwidth() (uint32, error)
	SetTxVGA1(gainDB int) error
	TxVGA1() (int, error)
	SetTxVGA2(gainDB int) error
	TxVGA2() (int, error)

	// EnableTx switches the transmit module on or off.
	EnableTx(enable bool) error

	// InitTxStream allocates the native transfer engine and its buffer
	// arena. The callback is invoked from the engine's own execution
	// context for every completed transfer; see StreamCallback.
	InitTxStream(cfg StreamConfig, cb StreamCallback) (TxStream, error)

	Close() error
}

// Opener opens a device by enumeration index.
type Opener func(index uint) (Device, error)
