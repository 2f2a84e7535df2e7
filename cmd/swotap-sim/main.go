// Command swotap-sim runs the firmware on a simulated board and prints what a
// trace probe would have captured.
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

	"github.com/swotap/swotap/internal/config"
	"github.com/swotap/swotap/internal/firmware"
	"github.com/swotap/swotap/internal/hal/sim"
	"github.com/swotap/swotap/internal/trace"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	dumpConfig := flag.String("dump-config", "", "Write the effective configuration to this file and exit")
	duration := flag.Duration("duration", 3*time.Second, "How long to run")
	pressEvery := flag.Duration("press-every", time.Second, "Toggle the simulated button this often (0 = never)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("swotap-sim %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *dumpConfig != "" {
		if err := cfg.SaveToFile(*dumpConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("configuration written to %s\n", *dumpConfig)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	report, err := run(ctx, cfg, *pressEvery)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	fmt.Print(report)
}

func loadConfig(path string) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run boots the firmware on a simulated board and drives its clocks in real
// time until ctx is done. It returns the captured trace as text.
func run(ctx context.Context, cfg *config.Configuration, pressEvery time.Duration) (string, error) {
	board := sim.NewBoard(trace.NumLanes)
	board.Cycles.SetStep(12)

	var phase uint16
	board.ADC.Input = func(uint8) uint16 {
		phase = (phase + 37) & 0x0FFF
		return phase
	}

	hw := board.HAL()
	hw.CoreHz = cfg.Board.CoreHz
	app, err := firmware.New(hw, cfg)
	if err != nil {
		return "", err
	}
	board.Button.Handler = func() { _ = app.Dispatch(firmware.IRQButton) }
	board.SampleDMA.Handler = func() { _ = app.Dispatch(firmware.IRQSampleDMA) }

	if err := app.Setup(); err != nil {
		return "", err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		drive(ctx, board, pressEvery)
	}()

	if err := app.Run(ctx); err != nil {
		return "", err
	}
	<-done

	snap := app.Shared().Snapshot()
	samples := board.Trace.Lane(int(trace.LaneSample)).Words16()
	return fmt.Sprintf("%s\n--\nticks=%d batches=%d samples_traced=%d health=%s\n",
		board.Trace.Lane(int(trace.LanePrintf)).Text(),
		snap.Ticks, snap.Batches, len(samples), app.Health().GetOverallHealth()), nil
}

// drive advances the simulated timers once per millisecond: one edge-timer
// tick and five trigger periods, and toggles the button every pressEvery.
func drive(ctx context.Context, board *sim.Board, pressEvery time.Duration) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	lastToggle := time.Now()
	pressed := false
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			board.ButtonTimer.Advance(1)
			board.TriggerTimer.Advance(5 * 20)
			if pressEvery > 0 && now.Sub(lastToggle) >= pressEvery {
				lastToggle = now
				if pressed {
					board.Button.Release()
				} else {
					board.Button.Press()
				}
				pressed = !pressed
			}
		}
	}
}
