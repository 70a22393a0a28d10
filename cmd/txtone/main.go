package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rjboer/GoBladeRF/internal/dsp"
	"github.com/rjboer/GoBladeRF/internal/logging"
	"github.com/rjboer/GoBladeRF/internal/sdr"
	"github.com/rjboer/GoBladeRF/internal/sim"
	"github.com/rjboer/GoBladeRF/internal/telemetry"
)

func main() {
	args := flag.String("args", "bladerf=0,buffers=32,buflen=4096", "Device arguments")
	freq := flag.Float64("freq", 2.4e9, "Center frequency in Hz")
	rate := flag.Float64("rate", 4e6, "Sample rate in Hz")
	tone := flag.Float64("tone", 100e3, "Tone offset from center in Hz")
	gain := flag.Float64("gain", 10, "TX VGA2 gain in dB")
	seconds := flag.Int("seconds", 5, "Transmit duration in seconds")
	webAddr := flag.String("web", "", "Telemetry web address, e.g. :8080 (empty = stdout)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	logger := logging.Default()

	var reporters []telemetry.Reporter
	if *webAddr != "" {
		hub := telemetry.NewHub(500)
		reporters = append(reporters, hub)
		go telemetry.NewWebServer(*webAddr, hub).Start(ctx)
		log.Printf("Telemetry: http://localhost%s/api/events", *webAddr)
	} else {
		reporters = append(reporters, telemetry.NewStdoutReporter(logger))
	}

	tx, err := sdr.New(*args, sim.Open, logger)
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer tx.Close()
	tx.SetEventLogger(telemetry.MultiReporter(reporters))

	if _, err := tx.SetSampleRate(*rate); err != nil {
		log.Fatalf("set sample rate: %v", err)
	}
	if _, err := tx.SetCenterFreq(*freq); err != nil {
		log.Fatalf("set center frequency: %v", err)
	}
	if _, err := tx.SetGain(*gain); err != nil {
		log.Fatalf("set gain: %v", err)
	}

	const blockSize = 4096
	samples := dsp.Tone(*tone, *rate, 0.7, blockSize)

	// Sanity-check the generated block before committing it to the air.
	spectrum := dsp.NewCachedDSP(blockSize)
	_, dbfs := spectrum.FFTAndDBFS(samples)
	peak := dsp.PeakBin(dbfs)
	want := dsp.ToneBin(*tone, *rate, blockSize)
	if peak != want {
		log.Fatalf("tone spectrum peak at bin %d, expected %d", peak, want)
	}
	fmt.Printf("Tone at %+.0f Hz offset, spectrum peak %.1f dBFS (bin %d)\n",
		*tone, dbfs[peak], peak)

	deadline := time.After(time.Duration(*seconds) * time.Second)
	fmt.Printf("Transmitting for %d seconds...\n", *seconds)

loop:
	for tx.Streaming() {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		default:
		}
		if n := tx.Write(samples); n < len(samples) {
			break loop
		}
	}

	stats := tx.Stats()
	fmt.Printf("Buffers filled: %d, sent to transfer engine: %d\n",
		stats.BuffersFilled, stats.BuffersSent)
}
