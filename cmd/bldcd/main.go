// bldcd is the sensorless BLDC commutation daemon. It runs the commutation
// core at a fixed tick rate against either a gate-driver board on a serial
// link or the built-in motor simulator, and serves live status over HTTP
// and WebSocket.
//
// Usage:
//
//	bldcd -config motor.cfg [options]
//
// Options:
//
//	-config string   Motor configuration file (required)
//	-sim             Drive the built-in simulator instead of a board
//	-listen string   Telemetry listen address (overrides config)
//	-metrics string  Standalone Prometheus listen address (default off)
//	-logfile string  Log file path with rotation (default: stderr)
//	-loglevel string Log level: debug, info, warn, error
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"bldc-go/pkg/config"
	"bldc-go/pkg/controller"
	"bldc-go/pkg/drive"
	"bldc-go/pkg/log"
	"bldc-go/pkg/metrics"
	"bldc-go/pkg/serial"
	"bldc-go/pkg/sim"
	"bldc-go/pkg/telemetry"
)

// command is the operator command shared between the tick loop and the
// telemetry command sink.
type command struct {
	mu          sync.Mutex
	speed       uint16
	forward     bool
	torque      uint16
	rampPercent uint8
}

func (c *command) SetCommand(speed uint16, forward bool, torque uint16, rampPercent uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	c.forward = forward
	c.torque = torque
	c.rampPercent = rampPercent
}

func (c *command) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = 0
}

func (c *command) get() (speed uint16, forward bool, torque uint16, rampPercent uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed, c.forward, c.torque, c.rampPercent
}

func main() {
	configFile := flag.String("config", "", "Motor configuration file (required)")
	useSim := flag.Bool("sim", false, "Drive the built-in simulator instead of a board")
	listen := flag.String("listen", "", "Telemetry listen address (overrides config)")
	metricsAddr := flag.String("metrics", "", "Standalone Prometheus listen address")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	logLevel := flag.String("loglevel", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.GetLogger("bldcd")
	if *logFile != "" {
		fileLogger, writer, err := log.NewFileLogger("bldcd", log.RotationConfig{Filename: *logFile})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer writer.Close()
		logger = fileLogger
		log.SetDefaultLogger(fileLogger)
	}
	if *logLevel != "" {
		logger.SetLevel(log.ParseLevel(*logLevel))
	}

	hc, err := config.ParseHostConfig(*configFile)
	if err != nil {
		logger.Error("config: %v", err)
		os.Exit(1)
	}
	if *listen != "" {
		hc.Telemetry.Enable = true
		hc.Telemetry.Listen = *listen
	}

	logger.Info("motor %q direction=%s tick_rate=%dHz shaping=%v",
		hc.Motor.Name, direction(hc.Motor.Forward), hc.Loop.TickRate, hc.Motor.Shaping)

	ctrl := controller.New(controller.Config{
		Name:    hc.Motor.Name,
		Shaping: hc.Motor.Shaping,
	})
	motorMetrics := metrics.NewMotorMetrics()

	cmd := &command{}
	cmd.SetCommand(hc.Motor.Speed, hc.Motor.Forward, hc.Motor.Torque, hc.Motor.RampPercent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Comparator feedback: either the simulated plant or the last board
	// status report.
	var plant *sim.Plant
	var link *drive.Link
	var boardComparators atomic.Uint32

	if *useSim || hc.Link.Device == "" {
		if !*useSim {
			logger.Warn("no link device configured, falling back to simulator")
		}
		plantCfg := sim.DefaultConfig()
		plantCfg.PolePairs = hc.Simulator.PolePairs
		plantCfg.Inertia = hc.Simulator.Inertia
		plantCfg.Friction = hc.Simulator.Friction
		plant = sim.New(plantCfg)
		logger.Info("simulator: pole_pairs=%d inertia=%g friction=%g",
			plantCfg.PolePairs, plantCfg.Inertia, plantCfg.Friction)
	} else {
		serialCfg := serial.DefaultConfig()
		serialCfg.Device = hc.Link.Device
		serialCfg.BaudRate = hc.Link.Baud
		port, err := serial.Open(serialCfg)
		if err != nil {
			logger.WithError(err).Error("opening %s", hc.Link.Device)
			os.Exit(1)
		}
		link = drive.NewLink(port, func(st drive.Status) {
			boardComparators.Store(uint32(st.Comparators))
		})
		defer link.Close()
		logger.Info("link: %s @ %d baud", hc.Link.Device, hc.Link.Baud)
	}

	var tel *telemetry.Server
	if hc.Telemetry.Enable {
		tel = telemetry.New(telemetry.Config{
			Addr:     hc.Telemetry.Listen,
			Source:   ctrl,
			Sink:     cmd,
			Registry: motorMetrics.Registry(),
		})
		go func() {
			if err := tel.Start(); err != nil {
				logger.WithError(err).Error("telemetry server failed")
			}
		}()
	}
	if *metricsAddr != "" {
		ms := metrics.NewServer(motorMetrics.Registry(), *metricsAddr)
		go func() {
			if err := ms.Start(); err != nil {
				logger.WithError(err).Error("metrics server failed")
			}
		}()
		defer ms.Shutdown(context.Background())
	}

	runLoop(ctx, logger, hc, ctrl, cmd, plant, link, &boardComparators, motorMetrics, tel)

	// Leave the board safe on the way out.
	if link != nil {
		if err := link.SendStop(); err != nil {
			logger.WithError(err).Warn("sending final stop")
		}
	}
	if tel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}
	logger.Info("stopped")
}

// runLoop executes controller ticks in millisecond batches until the
// context is cancelled. Running a 10 kHz tick domain as 10-tick batches at
// 1 kHz keeps timer pressure off the runtime while preserving tick counts.
func runLoop(
	ctx context.Context,
	logger *log.Logger,
	hc *config.HostConfig,
	ctrl *controller.Controller,
	cmd *command,
	plant *sim.Plant,
	link *drive.Link,
	boardComparators *atomic.Uint32,
	motorMetrics *metrics.MotorMetrics,
	tel *telemetry.Server,
) {
	const wakeInterval = time.Millisecond
	ticksPerWake := hc.Loop.TickRate / 1000
	if ticksPerWake < 1 {
		ticksPerWake = 1
	}

	ticker := time.NewTicker(wakeInterval)
	defer ticker.Stop()

	tickLabels := metrics.Labels{"motor": hc.Motor.Name}
	prevStatus := ctrl.Status()
	lastStatus := prevStatus
	var lastPattern uint8
	var lastDuty uint16
	ticksSinceStatus := 0

	var comparators uint8
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batchStart := time.Now()
		speed, forward, torque, rampPercent := cmd.get()

		for i := 0; i < ticksPerWake; i++ {
			if link != nil {
				comparators = uint8(boardComparators.Load())
			}
			out := ctrl.Step(controller.Inputs{
				Speed:       speed,
				Forward:     forward,
				Torque:      torque,
				RampPercent: rampPercent,
				Comparators: comparators,
			})
			if plant != nil {
				comparators = plant.Tick(out.Pattern)
			}
			if link != nil && (out.Pattern != lastPattern || out.Duty != lastDuty) {
				if err := link.SendDrive(out.Pattern, out.Duty); err != nil {
					logger.WithError(err).Warn("drive send failed")
				}
				lastPattern = out.Pattern
				lastDuty = out.Duty
			}

			ticksSinceStatus++
			if ticksSinceStatus >= hc.Loop.StatusInterval {
				ticksSinceStatus = 0
				cur := ctrl.Status()
				motorMetrics.ObserveStatus(prevStatus, cur)
				prevStatus = cur
				if tel != nil {
					tel.Publish(cur)
				}
				if cur.State != lastStatus.State {
					logger.Info("state %s -> %s (step=%d period=%d)",
						lastStatus.State, cur.State, cur.Step, cur.CommutationPeriod)
				}
				lastStatus = cur
			}
		}

		elapsed := time.Since(batchStart)
		motorMetrics.TickDuration.Observe(tickLabels,
			elapsed.Seconds()/float64(ticksPerWake))
		if elapsed > wakeInterval {
			motorMetrics.TickOverruns.Inc(tickLabels)
		}
	}
}

func direction(forward bool) string {
	if forward {
		return "forward"
	}
	return "reverse"
}
