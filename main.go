package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rjboer/GoBladeRF/bladerf"
	"github.com/rjboer/GoBladeRF/internal/sim"
)

// open is replaceable in tests.
var open bladerf.Opener = sim.Open

func run(args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("bladerf", flag.ContinueOnError)
	fs.SetOutput(out)
	index := fs.Uint("device-index", 0, "bladeRF device index")
	if err := fs.Parse(args); err != nil {
		return err
	}

	idx := *index
	if !flagWasSet(fs, "device-index") {
		if env := getenv("BLADERF_INDEX"); env != "" {
			if _, err := fmt.Sscanf(env, "%d", &idx); err != nil {
				return fmt.Errorf("BLADERF_INDEX %q: %w", env, err)
			}
		}
	}

	dev, err := open(idx)
	if err != nil {
		return fmt.Errorf("open device %d: %w", idx, err)
	}
	defer dev.Close()

	serial, err := dev.Serial()
	if err != nil {
		return fmt.Errorf("read serial: %w", err)
	}
	fw, err := dev.FirmwareVersion()
	if err != nil {
		return fmt.Errorf("read firmware version: %w", err)
	}
	fpga, err := dev.FPGAVersion()
	if err != nil {
		return fmt.Errorf("read fpga version: %w", err)
	}

	fmt.Fprintf(out, "Device:   bladeRF #%d\n", idx)
	fmt.Fprintf(out, "Serial:   %s\n", serial)
	fmt.Fprintf(out, "Firmware: %s\n", fw)
	fmt.Fprintf(out, "FPGA:     %s\n", fpga)
	return nil
}

func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
