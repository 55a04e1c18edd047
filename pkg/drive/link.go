// Package drive manages the framed serial connection to the gate-driver
// board: outgoing drive commands and a background reader for board status
// reports.
package drive

import (
	"context"
	"io"
	"sync"
	"time"

	"bldc-go/pkg/log"
	"bldc-go/pkg/protocol"
)

// Status is a decoded board status report.
type Status struct {
	// Comparators is the board's 3-line back-EMF comparator sample.
	Comparators uint8

	// Ticks is the board tick counter at sample time.
	Ticks uint32

	// ReceiveTime is when the report arrived (host time).
	ReceiveTime time.Time
}

// StatusHandler is called from the reader goroutine for each report.
type StatusHandler func(Status)

// Link drives one board over a framed byte stream. The stream is usually a
// serial.Port but any ReadWriteCloser works, which keeps the link testable.
type Link struct {
	mu      sync.Mutex
	stream  io.ReadWriteCloser
	seq     int
	onState StatusHandler
	logger  *log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewLink creates a link and starts its background reader.
func NewLink(stream io.ReadWriteCloser, onStatus StatusHandler) *Link {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Link{
		stream:  stream,
		onState: onStatus,
		logger:  log.GetLogger("drive"),
		cancel:  cancel,
	}
	l.wg.Add(1)
	go l.readLoop(ctx)
	return l
}

// SendDrive transmits the current switch pattern and duty.
func (l *Link) SendDrive(pattern uint8, duty uint16) error {
	return l.send(func(seq int) []byte {
		return protocol.EncodeDrive(seq, pattern, duty)
	})
}

// SendStop commands all switches open.
func (l *Link) SendStop() error {
	return l.send(func(seq int) []byte {
		return protocol.EncodeStop(seq)
	})
}

func (l *Link) send(encode func(seq int) []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return io.ErrClosedPipe
	}
	block := encode(l.seq)
	l.seq = (l.seq + 1) & protocol.SeqMask
	_, err := l.stream.Write(block)
	return err
}

// readLoop decodes board reports until the link closes.
func (l *Link) readLoop(ctx context.Context) {
	defer l.wg.Done()

	var dec protocol.StreamDecoder
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := l.stream.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.WithError(err).Debug("link read stopped")
			}
			return
		}
		if n == 0 {
			continue
		}
		for _, payload := range dec.Feed(buf[:n]) {
			rep, err := protocol.DecodeStatusReport(payload)
			if err != nil {
				l.logger.WithError(err).Debug("ignoring unknown report")
				continue
			}
			if l.onState != nil {
				l.onState(Status{
					Comparators: rep.Comparators,
					Ticks:       rep.Ticks,
					ReceiveTime: time.Now(),
				})
			}
		}
	}
}

// Close stops the reader and closes the underlying stream.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	err := l.stream.Close()
	l.wg.Wait()
	return err
}
