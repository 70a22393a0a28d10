// Package sdr exposes the bladeRF transmit sink to a host processing graph:
// one complex-sample input stream in, device configuration around it.
package sdr

import (
	"fmt"
	"math"
	"sync"

	"github.com/rjboer/GoBladeRF/bladerf"
	"github.com/rjboer/GoBladeRF/internal/logging"
	"github.com/rjboer/GoBladeRF/internal/sink"
)

// EventLogger receives diagnostic events for the telemetry system.
type EventLogger interface {
	LogEvent(level, message string)
}

// bladeRF x40 TX capabilities.
const (
	minSampleRateHz = 160_000
	maxSampleRateHz = 40_000_000
	minFrequencyHz  = 237_500_000
	maxFrequencyHz  = 3_800_000_000
	minBandwidthHz  = 1_500_000
	maxBandwidthHz  = 28_000_000
)

// BladeTX is the transmit sink block. Construction opens the device,
// optionally flashes firmware and loads an FPGA bitstream, and starts the
// streaming pipeline; samples then flow in through Write.
type BladeTX struct {
	mu     sync.Mutex
	dev    bladerf.Device
	sink   *sink.Sink
	logger logging.Logger
	events EventLogger

	vga1Range Range // BB path, VGA1GAINT[7:0]
	vga2Range Range // RF path, VGA2GAIN[4:0]
}

// New builds a BladeTX from a construction argument string (see ParseParams
// for the format) using open to acquire the device handle.
//
// Recognized keys: bladerf (device index), fw (firmware image to flash),
// fpga (bitstream to load), buffers, buflen (bytes), transfers.
//
// Device open failure, an unconfigured FPGA, and malformed numeric values
// abort construction. Firmware flash, FPGA load, stream init, and TX enable
// failures are logged and execution continues degraded.
func New(args string, open bladerf.Opener, logger logging.Logger) (*BladeTX, error) {
	if logger == nil {
		logger = logging.Default()
	}
	params := ParseParams(args)

	index, err := params.Uint("bladerf", 0)
	if err != nil {
		return nil, err
	}

	dev, err := open(index)
	if err != nil {
		return nil, fmt.Errorf("failed to open bladeRF device %d: %w", index, err)
	}

	if fw, ok := params["fw"]; ok && fw != "" {
		logger.Warn("flashing firmware image, DO NOT INTERRUPT", logging.Field{Key: "image", Value: fw})
		if err := dev.FlashFirmware(fw); err != nil {
			logger.Error("firmware flash failed", logging.Field{Key: "err", Value: err})
		} else {
			logger.Info("firmware flashed successfully")
		}
	}

	if fpga, ok := params["fpga"]; ok && fpga != "" {
		logger.Info("loading FPGA bitstream", logging.Field{Key: "bitstream", Value: fpga})
		if err := dev.LoadFPGA(fpga); err != nil {
			logger.Error("FPGA load failed", logging.Field{Key: "err", Value: err})
		} else {
			logger.Info("FPGA bitstream loaded successfully")
		}
	}

	// Identity is diagnostic only; ignore lookup failures.
	idFields := []logging.Field{{Key: "index", Value: index}}
	if serial, err := dev.Serial(); err == nil {
		idFields = append(idFields, logging.Field{Key: "serial", Value: serial})
	}
	if fw, err := dev.FirmwareVersion(); err == nil {
		idFields = append(idFields, logging.Field{Key: "fw", Value: fw.String()})
	}
	if fpga, err := dev.FPGAVersion(); err == nil {
		idFields = append(idFields, logging.Field{Key: "fpga", Value: fpga.String()})
	}
	logger.Info("using nuand bladeRF", idFields...)

	configured, err := dev.IsFPGAConfigured()
	if err == nil && !configured {
		err = fmt.Errorf("the FPGA is not configured, provide device argument fpga=/path/to/bitstream.rbf to load it")
	}
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	buffers, err := params.Int("buffers", 0)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	buflen, err := params.Int("buflen", 0)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	transfers, err := params.Int("transfers", 0)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	b := &BladeTX{
		dev:       dev,
		logger:    logger,
		vga1Range: Range{Min: -35, Max: -4, Step: 1},
		vga2Range: Range{Min: 0, Max: 25, Step: 1},
	}

	b.sink = sink.Start(dev, sink.Config{
		NumBuffers:   buffers,
		BufferBytes:  buflen,
		NumTransfers: transfers,
	}, logger)

	return b, nil
}

// SetEventLogger attaches a telemetry event sink; nil detaches it.
func (b *BladeTX) SetEventLogger(events EventLogger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = events
}

func (b *BladeTX) logEvent(level, message string) {
	b.mu.Lock()
	events := b.events
	b.mu.Unlock()
	if events != nil {
		events.LogEvent(level, message)
	}
}

// Write feeds samples into the transmit pipeline, blocking while the buffer
// pool is full. It returns the number of samples consumed; a short count
// means the stream shut down mid-call.
func (b *BladeTX) Write(samples []complex64) int {
	return b.sink.Feed(samples)
}

// Streaming reports whether the transmit pipeline is still live.
func (b *BladeTX) Streaming() bool { return b.sink.Running() }

// Stats returns the pipeline buffer counters.
func (b *BladeTX) Stats() sink.Stats { return b.sink.Stats() }

// NumChannels returns the logical channel count; one per bladeRF.
func (b *BladeTX) NumChannels() int { return 1 }

// NumBuffers returns the size of the stream buffer pool.
func (b *BladeTX) NumBuffers() int { return b.sink.NumBuffers() }

// SamplesPerBuffer returns the complex sample capacity of each pool buffer.
func (b *BladeTX) SamplesPerBuffer() int { return b.sink.SamplesPerBuffer() }

// NumTransfers returns the number of USB transfers kept in flight.
func (b *BladeTX) NumTransfers() int { return b.sink.NumTransfers() }

// SampleRateRange returns the valid sample-rate span in Hz.
func (b *BladeTX) SampleRateRange() Range {
	return Range{Min: minSampleRateHz, Max: maxSampleRateHz}
}

// SetSampleRate programs the TX sample rate and returns the rate the
// hardware actually applied.
func (b *BladeTX) SetSampleRate(rateHz float64) (float64, error) {
	if math.Round(rateHz) != rateHz {
		// TODO: fractional sample rate via the Si5338; truncated to the
		// integer path for now.
		b.logger.Warn("fractional sample rate truncated", logging.Field{Key: "rate_hz", Value: rateHz})
	}
	if _, err := b.dev.SetSampleRate(uint32(rateHz)); err != nil {
		return 0, fmt.Errorf("failed to set sample rate %.0f: %w", rateHz, err)
	}
	b.logEvent("info", fmt.Sprintf("sample rate set to %.0f Hz", rateHz))
	return b.SampleRate()
}

// SampleRate reads back the applied TX sample rate.
func (b *BladeTX) SampleRate() (float64, error) {
	rate, err := b.dev.SampleRate()
	if err != nil {
		return 0, fmt.Errorf("failed to get sample rate: %w", err)
	}
	return float64(rate), nil
}

// FrequencyRange returns the valid center-frequency span in Hz.
func (b *BladeTX) FrequencyRange() Range {
	return Range{Min: minFrequencyHz, Max: maxFrequencyHz}
}

// SetCenterFreq tunes the TX LO. An out-of-range request is logged and
// ignored, leaving the current frequency in place; a register failure on an
// in-range request is an error.
func (b *BladeTX) SetCenterFreq(freqHz float64) (float64, error) {
	if !b.FrequencyRange().Contains(freqHz) {
		b.logger.Warn("ignoring out of bound frequency", logging.Field{Key: "freq_hz", Value: freqHz})
	} else {
		if err := b.dev.SetFrequency(uint32(freqHz)); err != nil {
			return 0, fmt.Errorf("failed to set center frequency %.0f: %w", freqHz, err)
		}
		b.logEvent("info", fmt.Sprintf("center frequency set to %.0f Hz", freqHz))
	}
	return b.CenterFreq()
}

// CenterFreq reads back the TX LO frequency.
func (b *BladeTX) CenterFreq() (float64, error) {
	freq, err := b.dev.Frequency()
	if err != nil {
		return 0, fmt.Errorf("failed to get center frequency: %w", err)
	}
	return float64(freq), nil
}

// SetFreqCorr would write a VCTCXO trim; not implemented, the current
// correction is returned unchanged.
func (b *BladeTX) SetFreqCorr(ppm float64) (float64, error) {
	return b.FreqCorr()
}

// FreqCorr returns the frequency correction in ppm; always 0 until VCTCXO
// trim support lands.
func (b *BladeTX) FreqCorr() (float64, error) {
	return 0, nil
}

// GainNames lists the TX gain stages.
func (b *BladeTX) GainNames() []string {
	return []string{"VGA1", "VGA2"}
}

// GainRange returns the span of the named gain stage.
func (b *BladeTX) GainRange(name string) (Range, error) {
	switch name {
	case "VGA1":
		return b.vga1Range, nil
	case "VGA2":
		return b.vga2Range, nil
	default:
		return Range{}, fmt.Errorf("requested an invalid gain element %q", name)
	}
}

// OverallGainRange returns the aggregate gain span; VGA2 stands in for the
// whole system for now.
func (b *BladeTX) OverallGainRange() Range {
	return b.vga2Range
}

// SetGain sets the aggregate gain, which maps to VGA2.
func (b *BladeTX) SetGain(gainDB float64) (float64, error) {
	return b.SetGainNamed(gainDB, "VGA2")
}

// SetGainNamed programs one gain stage and returns the applied value.
func (b *BladeTX) SetGainNamed(gainDB float64, name string) (float64, error) {
	var err error
	switch name {
	case "VGA1":
		err = b.dev.SetTxVGA1(int(gainDB))
	case "VGA2":
		err = b.dev.SetTxVGA2(int(gainDB))
	default:
		return 0, fmt.Errorf("requested to set the gain of an unknown gain element %q", name)
	}
	if err != nil {
		return 0, fmt.Errorf("could not set %s gain: %w", name, err)
	}
	b.logEvent("info", fmt.Sprintf("%s gain set to %.0f dB", name, gainDB))
	return b.GainNamed(name)
}

// Gain returns the aggregate gain (VGA2).
func (b *BladeTX) Gain() (float64, error) {
	return b.GainNamed("VGA2")
}

// GainNamed reads back one gain stage.
func (b *BladeTX) GainNamed(name string) (float64, error) {
	var (
		g   int
		err error
	)
	switch name {
	case "VGA1":
		g, err = b.dev.TxVGA1()
	case "VGA2":
		g, err = b.dev.TxVGA2()
	default:
		return 0, fmt.Errorf("requested to get the gain of an unknown gain element %q", name)
	}
	if err != nil {
		return 0, fmt.Errorf("could not get %s gain: %w", name, err)
	}
	return float64(g), nil
}

// SetBBGain sets the baseband gain; on TX only VGA1 sits in the BB path, so
// the request is clipped to its range and applied there.
func (b *BladeTX) SetBBGain(gainDB float64) (float64, error) {
	return b.SetGainNamed(b.vga1Range.Clip(gainDB), "VGA1")
}

// SetGainMode rejects automatic gain control; TX has none.
func (b *BladeTX) SetGainMode(automatic bool) bool { return false }

// GainMode reports manual gain control.
func (b *BladeTX) GainMode() bool { return false }

// Antennas lists the selectable antennas; a single TX port.
func (b *BladeTX) Antennas() []string {
	return []string{b.Antenna()}
}

// SetAntenna accepts any request and returns the fixed TX antenna.
func (b *BladeTX) SetAntenna(antenna string) string {
	return b.Antenna()
}

// Antenna returns the fixed transmit antenna name.
func (b *BladeTX) Antenna() string { return "TX" }

// BandwidthRange returns the analog filter span in Hz.
func (b *BladeTX) BandwidthRange() Range {
	return Range{Min: minBandwidthHz, Max: maxBandwidthHz}
}

// SetBandwidth programs the TX filter bandwidth and returns the value the
// hardware chose.
func (b *BladeTX) SetBandwidth(bwHz float64) (float64, error) {
	if _, err := b.dev.SetBandwidth(uint32(bwHz)); err != nil {
		return 0, fmt.Errorf("could not set bandwidth: %w", err)
	}
	b.logEvent("info", fmt.Sprintf("bandwidth set to %.0f Hz", bwHz))
	return b.Bandwidth()
}

// Bandwidth reads back the applied TX filter bandwidth.
func (b *BladeTX) Bandwidth() (float64, error) {
	bw, err := b.dev.Bandwidth()
	if err != nil {
		return 0, fmt.Errorf("could not get bandwidth: %w", err)
	}
	return float64(bw), nil
}

// Close stops the streaming pipeline and releases the device.
func (b *BladeTX) Close() error {
	b.sink.Stop()
	b.logEvent("info", "transmit sink closed")
	return b.dev.Close()
}
