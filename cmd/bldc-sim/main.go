// bldc-sim exercises the commutation core against the simulated motor
// plant. In batch mode it runs a fixed number of ticks and reports the
// spin-up, optionally writing a per-tick CSV trace. With -socket it
// emulates a gate-driver board instead: it speaks the drive-link framing
// over a TCP or unix socket so bldcd can be tested end to end without
// hardware.
//
// Usage:
//
//	bldc-sim [-ticks 200000] [-speed 60000] [-trace out.csv]
//	bldc-sim -socket /tmp/bldc_board
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"bldc-go/pkg/controller"
	"bldc-go/pkg/log"
	"bldc-go/pkg/protocol"
	"bldc-go/pkg/sim"
)

func main() {
	ticks := flag.Int("ticks", 200000, "Ticks to run in batch mode")
	speed := flag.Int("speed", 60000, "Speed command, 0-65535")
	torque := flag.Int("torque", 49152, "Torque command, 0-65535")
	reverse := flag.Bool("reverse", false, "Spin in reverse")
	shaping := flag.Bool("shaping", false, "Enable the trapezoidal duty shaper")
	ramp := flag.Int("ramp", 20, "Trapezoidal ramp percent, 0-100")
	tracePath := flag.String("trace", "", "CSV trace output path")
	socket := flag.String("socket", "", "Emulate a board on this address instead")
	tickRate := flag.Int("tickrate", 10000, "Board tick rate in socket mode, Hz")
	flag.Parse()

	logger := log.GetLogger("bldc-sim")

	if *socket != "" {
		if err := serveBoard(logger, *socket, *tickRate); err != nil {
			logger.WithError(err).Error("board emulation failed")
			os.Exit(1)
		}
		return
	}

	if err := runBatch(logger, batchOptions{
		ticks:   *ticks,
		speed:   uint16(*speed),
		forward: !*reverse,
		torque:  uint16(*torque),
		ramp:    uint8(*ramp),
		shaping: *shaping,
		trace:   *tracePath,
	}); err != nil {
		logger.WithError(err).Error("simulation failed")
		os.Exit(1)
	}
}

type batchOptions struct {
	ticks   int
	speed   uint16
	forward bool
	torque  uint16
	ramp    uint8
	shaping bool
	trace   string
}

// runBatch spins the closed loop for a fixed tick count and summarizes it.
func runBatch(logger *log.Logger, opts batchOptions) error {
	ctrl := controller.New(controller.Config{Name: "sim", Shaping: opts.shaping})
	plant := sim.New(sim.DefaultConfig())

	var traceWriter *csv.Writer
	if opts.trace != "" {
		f, err := os.Create(opts.trace)
		if err != nil {
			return err
		}
		defer f.Close()
		traceWriter = csv.NewWriter(f)
		defer traceWriter.Flush()
		traceWriter.Write([]string{
			"tick", "state", "step", "pattern", "duty", "period", "velocity",
		})
	}

	var comparators uint8
	lastState := ctrl.Status().State
	for i := 0; i < opts.ticks; i++ {
		out := ctrl.Step(controller.Inputs{
			Speed:       opts.speed,
			Forward:     opts.forward,
			Torque:      opts.torque,
			RampPercent: opts.ramp,
			Comparators: comparators,
		})
		comparators = plant.Tick(out.Pattern)

		st := ctrl.Status()
		if st.State != lastState {
			logger.Info("tick %d: %s -> %s (period=%d)",
				i, lastState, st.State, st.CommutationPeriod)
			lastState = st.State
		}
		if traceWriter != nil && i%10 == 0 {
			traceWriter.Write([]string{
				strconv.Itoa(i),
				st.State,
				strconv.Itoa(int(st.Step)),
				fmt.Sprintf("%06b", st.Pattern),
				strconv.Itoa(int(st.Duty)),
				strconv.FormatUint(uint64(st.CommutationPeriod), 10),
				strconv.FormatFloat(plant.Velocity(), 'g', 6, 64),
			})
		}
	}

	final := ctrl.Status()
	logger.Info("done: state=%s step=%d last_period=%d estimated_period=%d rpm=%.0f",
		final.State, final.Step, final.LastPeriod, final.EstimatedPeriod,
		plant.RPM(10000))
	if final.State != "running" && opts.speed != 0 {
		return fmt.Errorf("motor did not reach running state (final: %s)", final.State)
	}
	return nil
}

// board is the emulated gate-driver side of the drive link: it applies
// received drive commands to a plant and reports comparator samples back.
type board struct {
	mu      sync.Mutex
	pattern uint8
	seq     int
	plant   *sim.Plant
	ticks   uint32
}

// serveBoard accepts drive-link connections one at a time.
func serveBoard(logger *log.Logger, addr string, tickRate int) error {
	network := "tcp"
	if strings.Contains(addr, "/") {
		network = "unix"
		os.Remove(addr)
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Info("board listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return nil
		}
		logger.Info("host connected from %s", conn.RemoteAddr())
		serveConn(logger, conn, tickRate)
		logger.Info("host disconnected")
	}
}

func serveConn(logger *log.Logger, conn net.Conn, tickRate int) {
	defer conn.Close()

	b := &board{plant: sim.New(sim.DefaultConfig())}
	done := make(chan struct{})

	// Plant ticks in millisecond batches, one status report per batch.
	go func() {
		ticksPerWake := tickRate / 1000
		if ticksPerWake < 1 {
			ticksPerWake = 1
		}
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			b.mu.Lock()
			var comparators uint8
			for i := 0; i < ticksPerWake; i++ {
				comparators = b.plant.Tick(b.pattern)
				b.ticks++
			}
			block := protocol.EncodeStatusReport(b.seq, protocol.StatusReport{
				Comparators: comparators,
				Ticks:       b.ticks,
			})
			b.seq = (b.seq + 1) & protocol.SeqMask
			b.mu.Unlock()
			if _, err := conn.Write(block); err != nil {
				return
			}
		}
	}()
	defer close(done)

	var dec protocol.StreamDecoder
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		for _, payload := range dec.Feed(buf[:n]) {
			b.handleCommand(logger, payload)
		}
	}
}

func (b *board) handleCommand(logger *log.Logger, payload []byte) {
	cmd, _ := protocol.DecodeUint32(payload, 0)
	b.mu.Lock()
	defer b.mu.Unlock()
	switch cmd {
	case protocol.CmdDrive:
		dc, err := protocol.DecodeDrive(payload)
		if err != nil {
			logger.WithError(err).Warn("bad drive command")
			return
		}
		b.pattern = dc.Pattern
	case protocol.CmdStop:
		b.pattern = 0
	case protocol.CmdStatus:
		// Reports are pushed on the tick schedule already.
	default:
		logger.Warn("unknown command %d", cmd)
	}
}
