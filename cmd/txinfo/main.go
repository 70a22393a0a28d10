package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/rjboer/GoBladeRF/internal/logging"
	"github.com/rjboer/GoBladeRF/internal/sdr"
	"github.com/rjboer/GoBladeRF/internal/sim"
)

func main() {
	args := flag.String("args", "bladerf=0", "Device arguments")
	flag.Parse()

	tx, err := sdr.New(*args, sim.Open, logging.Default())
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer tx.Close()

	fmt.Println("===============================================================")
	fmt.Println(" bladeRF TX capabilities")
	fmt.Println("===============================================================")

	rate, _ := tx.SampleRate()
	freq, _ := tx.CenterFreq()
	bw, _ := tx.Bandwidth()

	fmt.Printf(" Channels    : %d\n", tx.NumChannels())
	fmt.Printf(" Antennas    : %v (active: %s)\n", tx.Antennas(), tx.Antenna())
	fmt.Printf(" Sample rate : %.0f Hz  (range %v)\n", rate, tx.SampleRateRange())
	fmt.Printf(" Frequency   : %.0f Hz  (range %v)\n", freq, tx.FrequencyRange())
	fmt.Printf(" Bandwidth   : %.0f Hz  (range %v)\n", bw, tx.BandwidthRange())

	fmt.Println(" Gain stages :")
	for _, name := range tx.GainNames() {
		r, err := tx.GainRange(name)
		if err != nil {
			continue
		}
		g, _ := tx.GainNamed(name)
		fmt.Printf("   %-5s %v (current %.0f dB)\n", name, r, g)
	}
	fmt.Printf(" Overall gain: %v\n", tx.OverallGainRange())

	fmt.Println("---------------------------------------------------------------")
	fmt.Printf(" Stream pool : %d buffers x %d samples, %d transfers\n",
		tx.NumBuffers(), tx.SamplesPerBuffer(), tx.NumTransfers())
	fmt.Println("===============================================================")
}
