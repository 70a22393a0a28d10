package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rjboer/GoBladeRF/bladerf"
)

func TestRunParsesIndexFromFlagAndEnv(t *testing.T) {
	mockedOpen := func(index uint) (bladerf.Device, error) {
		return nil, fmt.Errorf("index=%d", index)
	}
	prevOpen := open
	open = mockedOpen
	defer func() { open = prevOpen }()

	buf := &strings.Builder{}
	getenv := func(key string) string {
		if key == "BLADERF_INDEX" {
			return "3"
		}
		return ""
	}

	err := run([]string{"--device-index", "7"}, buf, getenv)
	if err == nil || !strings.Contains(err.Error(), "index=7") {
		t.Fatalf("expected open to receive flag index, got %v", err)
	}

	err = run(nil, buf, getenv)
	if err == nil || !strings.Contains(err.Error(), "index=3") {
		t.Fatalf("expected open to receive env index, got %v", err)
	}
}

func TestRunHandlesOpenError(t *testing.T) {
	mockedOpen := func(uint) (bladerf.Device, error) {
		return nil, errors.New("open failed")
	}
	prevOpen := open
	open = mockedOpen
	defer func() { open = prevOpen }()

	err := run(nil, &strings.Builder{}, func(string) string { return "" })
	if err == nil || !strings.Contains(err.Error(), "open failed") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestRunPrintsDeviceIdentity(t *testing.T) {
	buf := &strings.Builder{}
	if err := run(nil, buf, func(string) string { return "" }); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Serial:", "Firmware:", "FPGA:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunRejectsMalformedEnvIndex(t *testing.T) {
	getenv := func(key string) string {
		if key == "BLADERF_INDEX" {
			return "banana"
		}
		return ""
	}
	if err := run(nil, &strings.Builder{}, getenv); err == nil {
		t.Fatal("malformed BLADERF_INDEX must error")
	}
}
