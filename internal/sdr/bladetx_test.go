package sdr

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rjboer/GoBladeRF/bladerf"
	"github.com/rjboer/GoBladeRF/internal/logging"
	"github.com/rjboer/GoBladeRF/internal/sim"
	"github.com/rjboer/GoBladeRF/internal/telemetry"
)

func testLogger() logging.Logger {
	return logging.New(logging.Error, logging.Text, io.Discard)
}

func newTestTX(t *testing.T, args string) (*BladeTX, *sim.Device) {
	t.Helper()
	var dev *sim.Device
	open := func(index uint) (bladerf.Device, error) {
		d, err := sim.Open(index)
		dev = d.(*sim.Device)
		return d, err
	}
	tx, err := New(args, open, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = tx.Close() })
	return tx, dev
}

func TestNewFailsWhenOpenFails(t *testing.T) {
	open := func(index uint) (bladerf.Device, error) {
		return nil, errors.New("no such device")
	}
	if _, err := New("bladerf=3", open, testLogger()); err == nil {
		t.Fatal("expected construction to fail")
	}
}

func TestNewFailsOnMalformedNumericParam(t *testing.T) {
	if _, err := New("bladerf=zero", sim.Open, testLogger()); err == nil {
		t.Fatal("malformed device index must abort construction")
	}
	if _, err := New("buffers=many", sim.Open, testLogger()); err == nil {
		t.Fatal("malformed buffers value must abort construction")
	}
}

func TestNewFailsWhenFPGANotConfigured(t *testing.T) {
	open := func(index uint) (bladerf.Device, error) {
		d := sim.NewDevice()
		d.SetFPGAConfigured(false)
		return d, nil
	}
	if _, err := New("", open, testLogger()); err == nil {
		t.Fatal("unconfigured FPGA must abort construction")
	}
}

func TestNewSurvivesAdvisoryFailures(t *testing.T) {
	open := func(index uint) (bladerf.Device, error) {
		d := sim.NewDevice()
		d.FlashErr = errors.New("flash failed")
		d.LoadErr = errors.New("load failed")
		return d, nil
	}
	tx, err := New("fw=/tmp/fw.img,fpga=/tmp/fpga.rbf", open, testLogger())
	if err != nil {
		t.Fatalf("advisory failures must not abort construction: %v", err)
	}
	_ = tx.Close()
}

func TestGainStages(t *testing.T) {
	tx, _ := newTestTX(t, "buffers=4,buflen=4096")

	names := tx.GainNames()
	if len(names) != 2 || names[0] != "VGA1" || names[1] != "VGA2" {
		t.Fatalf("gain names: %v", names)
	}

	// Aggregate gain maps to VGA2.
	if g, err := tx.SetGain(20); err != nil || g != 20 {
		t.Errorf("SetGain: got %v, %v", g, err)
	}
	if g, err := tx.GainNamed("VGA2"); err != nil || g != 20 {
		t.Errorf("VGA2 readback: got %v, %v", g, err)
	}

	// Baseband gain maps to VGA1 with clipping.
	if g, err := tx.SetBBGain(-50); err != nil || g != -35 {
		t.Errorf("SetBBGain below range: got %v, %v", g, err)
	}
	if g, err := tx.SetBBGain(10); err != nil || g != -4 {
		t.Errorf("SetBBGain above range: got %v, %v", g, err)
	}

	if _, err := tx.SetGainNamed(5, "VGA3"); err == nil {
		t.Error("unknown gain element must error")
	}
	if _, err := tx.GainRange("VGA3"); err == nil {
		t.Error("unknown gain range must error")
	}

	r, err := tx.GainRange("VGA1")
	if err != nil || r.Min != -35 || r.Max != -4 {
		t.Errorf("VGA1 range: %+v, %v", r, err)
	}
	if tx.SetGainMode(true) || tx.GainMode() {
		t.Error("TX has no automatic gain mode")
	}
}

func TestCenterFreqOutOfRangeIsIgnored(t *testing.T) {
	tx, _ := newTestTX(t, "buffers=4,buflen=4096")

	before, err := tx.CenterFreq()
	if err != nil {
		t.Fatalf("CenterFreq: %v", err)
	}

	after, err := tx.SetCenterFreq(100e6) // below the 237.5 MHz floor
	if err != nil {
		t.Fatalf("out-of-range request must not be a hard failure: %v", err)
	}
	if after != before {
		t.Fatalf("frequency moved from %v to %v on an out-of-range request", before, after)
	}

	applied, err := tx.SetCenterFreq(2.4e9)
	if err != nil || applied != 2.4e9 {
		t.Fatalf("in-range request: got %v, %v", applied, err)
	}
}

func TestSampleRateAndBandwidthRoundTrips(t *testing.T) {
	tx, _ := newTestTX(t, "buffers=4,buflen=4096")

	if rate, err := tx.SetSampleRate(2_000_000); err != nil || rate != 2_000_000 {
		t.Errorf("integer rate: got %v, %v", rate, err)
	}
	// Fractional rates fall through to the integer path.
	if rate, err := tx.SetSampleRate(1_000_000.5); err != nil || rate != 1_000_000 {
		t.Errorf("fractional rate: got %v, %v", rate, err)
	}

	// The simulator snaps to the nearest analog filter, like the LMS6002D.
	if bw, err := tx.SetBandwidth(1_600_000); err != nil || bw != 1_500_000 {
		t.Errorf("bandwidth snap: got %v, %v", bw, err)
	}
}

func TestRegisterErrorsAreOperationFatal(t *testing.T) {
	tx, dev := newTestTX(t, "buffers=4,buflen=4096")

	dev.RegisterErr = errors.New("usb register access failed")
	if _, err := tx.SetSampleRate(1e6); err == nil {
		t.Error("sample rate register failure must surface")
	}
	if _, err := tx.SetGain(10); err == nil {
		t.Error("gain register failure must surface")
	}
	if _, err := tx.SetBandwidth(2e6); err == nil {
		t.Error("bandwidth register failure must surface")
	}
	dev.RegisterErr = nil

	// The object stays usable afterwards.
	if _, err := tx.SetSampleRate(1e6); err != nil {
		t.Errorf("device unusable after operation failure: %v", err)
	}
}

func TestCapabilitiesAndStubs(t *testing.T) {
	tx, _ := newTestTX(t, "buffers=4,buflen=4096")

	if n := tx.NumChannels(); n != 1 {
		t.Errorf("channels: got %d", n)
	}
	if a := tx.Antennas(); len(a) != 1 || a[0] != "TX" {
		t.Errorf("antennas: %v", a)
	}
	if got := tx.SetAntenna("RX"); got != "TX" {
		t.Errorf("SetAntenna: got %q", got)
	}
	if ppm, err := tx.SetFreqCorr(12); err != nil || ppm != 0 {
		t.Errorf("freq corr stub: got %v, %v", ppm, err)
	}
	if r := tx.SampleRateRange(); r.Min != 160_000 || r.Max != 40_000_000 {
		t.Errorf("sample rate range: %+v", r)
	}
	if r := tx.OverallGainRange(); r.Min != 0 || r.Max != 25 {
		t.Errorf("overall gain range: %+v", r)
	}
}

func TestWriteStreamsThroughPipeline(t *testing.T) {
	tx, dev := newTestTX(t, "buffers=4,buflen=4096")

	spb := 1024
	if n := tx.Write(make([]complex64, 2*spb)); n != 2*spb {
		t.Fatalf("Write consumed %d, want %d", n, 2*spb)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if dev.Stream().SamplesSent() >= uint64(spb) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no samples reached the transfer engine")
}

func TestEventLoggerReceivesOperationEvents(t *testing.T) {
	tx, _ := newTestTX(t, "buffers=4,buflen=4096")

	hub := telemetry.NewHub(10)
	tx.SetEventLogger(hub)

	if _, err := tx.SetSampleRate(4e6); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}
	events := hub.History()
	if len(events) == 0 {
		t.Fatal("no telemetry events recorded")
	}
}
