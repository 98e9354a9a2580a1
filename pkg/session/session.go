// Package session owns the progress of one scan: first find a barcode, then
// keep reading the package for a best-before date until one validates or the
// deadline passes. All state transitions happen on a single goroutine, so
// adapter completions arriving concurrently and out of frame order can never
// race on the phase.
package session

import (
	"sync/atomic"
	"time"

	"freshkeeper/pkg/expiry"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/recognize"
)

// Phase is the scan session's state. It only moves forward; Cancel is the
// one exception and is allowed from any state.
type Phase int32

const (
	AwaitingBarcode Phase = iota
	AwaitingExpiryDate
	Completed
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case AwaitingBarcode:
		return "AwaitingBarcode"
	case AwaitingExpiryDate:
		return "AwaitingExpiryDate"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Result is delivered to the downstream consumer exactly once, when the
// session reaches a terminal phase. A Completed result with a nil Expiry
// means the barcode was found but no date validated in time. Err is set only
// for session-level failures (camera loss, frame leak), never for ordinary
// recognition misses.
type Result struct {
	Phase   Phase
	Barcode *recognize.Barcode
	Expiry  *expiry.Normalized
	Err     error
}

// Session is the scan state machine. Create with New, drive with the Offer
// methods, read the outcome from Done.
type Session struct {
	deadline time.Duration
	now      func() time.Time

	phase atomic.Int32

	barcodeCh chan recognize.Barcode
	textCh    chan recognize.RecognizedText
	skipCh    chan struct{}
	cancelCh  chan error

	done   chan Result
	closed chan struct{}

	// Owned by the run loop.
	barcode     *recognize.Barcode
	bestPartial *expiry.Normalized
	deadlineAt  time.Time
}

// New creates a session that keeps searching for a date for the given
// duration after the barcode is found.
func New(deadline time.Duration) *Session {
	return &Session{
		deadline:  deadline,
		now:       time.Now,
		barcodeCh: make(chan recognize.Barcode),
		textCh:    make(chan recognize.RecognizedText),
		skipCh:    make(chan struct{}),
		cancelCh:  make(chan error),
		done:      make(chan Result, 1),
		closed:    make(chan struct{}),
	}
}

// Start launches the run loop.
func (s *Session) Start() {
	go s.run()
}

// Phase returns the current phase. It may be read from any goroutine.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// Done yields the session result exactly once.
func (s *Session) Done() <-chan Result {
	return s.done
}

// Terminated is closed when the session has reached a terminal phase. Unlike
// Done it can be selected on by any number of watchers.
func (s *Session) Terminated() <-chan struct{} {
	return s.closed
}

// OfferBarcode hands a decoded symbol to the session. Offers after the
// barcode-search phase, or after termination, are discarded: the barcode is
// set at most once and never cleared.
func (s *Session) OfferBarcode(b recognize.Barcode) {
	select {
	case s.barcodeCh <- b:
	case <-s.closed:
	}
}

// OfferText hands one OCR result to the session. Empty results still matter:
// the deadline is evaluated on every text completion.
func (s *Session) OfferText(t recognize.RecognizedText) {
	select {
	case s.textCh <- t:
	case <-s.closed:
	}
}

// Skip ends the date search immediately, keeping the barcode and no date.
// Before a barcode is known there is nothing to keep, so Skip cancels.
func (s *Session) Skip() {
	select {
	case s.skipCh <- struct{}{}:
	case <-s.closed:
	}
}

// Cancel aborts the session from any state, carrying whatever barcode had
// been captured. In-flight analyzer work may still complete; its results are
// discarded.
func (s *Session) Cancel() {
	select {
	case s.cancelCh <- nil:
	case <-s.closed:
	}
}

// Fail aborts the session because of an unrecoverable pipeline failure. The
// result carries err so the consumer can distinguish it from a normal
// completion without a date.
func (s *Session) Fail(err error) {
	select {
	case s.cancelCh <- err:
	case <-s.closed:
	}
}

func (s *Session) run() {
	var deadlineFire <-chan time.Time
	var deadlineTimer *time.Timer
	defer func() {
		if deadlineTimer != nil {
			deadlineTimer.Stop()
		}
	}()

	for {
		select {
		case b := <-s.barcodeCh:
			if s.Phase() != AwaitingBarcode {
				continue
			}
			s.barcode = &b
			s.deadlineAt = s.now().Add(s.deadline)
			deadlineTimer = time.NewTimer(s.deadline)
			deadlineFire = deadlineTimer.C
			s.phase.Store(int32(AwaitingExpiryDate))
			log.Debug("barcode %s (%s) captured, searching for date until %s",
				b.Value, b.Symbology, s.deadlineAt.Format(time.RFC3339Nano))

		case t := <-s.textCh:
			if s.Phase() != AwaitingExpiryDate {
				continue
			}
			now := s.now()
			full, partial := expiry.Scan(t.Raw, now)
			if full != nil {
				// A complete date always wins, even over an
				// earlier partial.
				s.finish(Completed, full, nil)
				return
			}
			if partial != nil && s.bestPartial == nil {
				s.bestPartial = partial
				log.Debug("recorded partial date %s", partial.Time().Format("2006-01-02"))
			}
			if !now.Before(s.deadlineAt) {
				s.finish(Completed, s.bestPartial, nil)
				return
			}

		case <-deadlineFire:
			s.finish(Completed, s.bestPartial, nil)
			return

		case <-s.skipCh:
			if s.Phase() == AwaitingBarcode {
				s.finish(Cancelled, nil, nil)
				return
			}
			s.finish(Completed, nil, nil)
			return

		case err := <-s.cancelCh:
			s.finish(Cancelled, nil, err)
			return
		}
	}
}

// finish applies the terminal transition and delivers the result. Called
// only from the run loop.
func (s *Session) finish(phase Phase, date *expiry.Normalized, err error) {
	s.phase.Store(int32(phase))
	s.done <- Result{Phase: phase, Barcode: s.barcode, Expiry: date, Err: err}
	close(s.closed)
	log.Debug("session %s", phase)
}
