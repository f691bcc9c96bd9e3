package scanner

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	serial "go.bug.st/serial"
	"go.uber.org/zap"

	pkgerrors "CheckinKiosk/pkg/errors"
)

// troubleAfter is how long the scanner may stay unreachable before the
// operator gets one notice. One notice per outage, never a mail storm.
const troubleAfter = 10 * time.Minute

// Scanner reads decoded QR payloads from the serial barcode reader, one
// line per scan, and keeps reconnecting for as long as the kiosk runs.
type Scanner struct {
	port      string
	baud      int
	log       *zap.Logger
	onTrouble func(err error)
}

func New(port string, baud int, log *zap.Logger, onTrouble func(err error)) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{port: port, baud: baud, log: log, onTrouble: onTrouble}
}

// Run opens the port and emits trimmed, non-empty scan lines until ctx
// is cancelled. Open failures back off exponentially up to a minute.
func (s *Scanner) Run(ctx context.Context) <-chan string {
	out := make(chan string, 16)

	go func() {
		defer close(out)

		bo := backoff.NewExponentialBackOff()
		bo.MaxInterval = time.Minute
		bo.MaxElapsedTime = 0

		wd := newWatchdog(troubleAfter, time.Now())

		for ctx.Err() == nil {
			port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baud})
			if err != nil {
				s.log.Error("Failed to open scanner port",
					zap.String("port", s.port),
					zap.Error(err),
				)
				if wd.due(time.Now()) && s.onTrouble != nil {
					s.onTrouble(fmt.Errorf("%w: %v", pkgerrors.ScannerOffline, err))
				}
				select {
				case <-time.After(bo.NextBackOff()):
					continue
				case <-ctx.Done():
					return
				}
			}

			if wd.alerted {
				s.log.Info("Scanner back online", zap.String("port", s.port))
			}
			wd.markOK(time.Now())
			bo.Reset()
			s.log.Info("Scanner port open",
				zap.String("port", s.port),
				zap.Int("baud", s.baud),
			)

			s.readLines(ctx, port, out, wd)
		}
	}()

	return out
}

func (s *Scanner) readLines(ctx context.Context, port serial.Port, out chan<- string, wd *watchdog) {
	// The serial read does not honor ctx; closing the port unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	sc := bufio.NewScanner(port)
	for sc.Scan() {
		code := strings.TrimSpace(sc.Text())
		if code == "" {
			continue
		}
		wd.markOK(time.Now())
		select {
		case out <- code:
		case <-ctx.Done():
			port.Close()
			return
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		s.log.Error("Scanner read failed, reconnecting", zap.Error(err))
	}
	port.Close()
}
