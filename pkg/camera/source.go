package camera

import (
	"context"
	"sync"
)

// Source is a push stream of camera frames. Delivery is keep-only-latest: a
// frame that is not consumed before the next one arrives is silently
// replaced, mirroring a real camera's latest-image policy. A closed Frames
// channel means the source has stopped; Err reports whether it stopped
// because of a failure.
type Source interface {
	// Start begins producing frames. The stream ends when ctx is
	// cancelled, Stop is called, or the source fails.
	Start(ctx context.Context) error
	Frames() <-chan *Frame
	// Err returns the failure that ended the stream, or nil if the stream
	// ended normally.
	Err() error
	Stop()
}

// pump implements the keep-only-latest delivery shared by all sources.
type pump struct {
	out      chan *Frame
	stop     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

func newPump() pump {
	return pump{
		out:  make(chan *Frame, 1),
		stop: make(chan struct{}),
	}
}

func (p *pump) Frames() <-chan *Frame { return p.out }

func (p *pump) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// fail records the first failure; later ones are ignored.
func (p *pump) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// offer delivers a frame, displacing an unconsumed older frame if necessary.
func (p *pump) offer(f *Frame) {
	for {
		select {
		case <-p.stop:
			return
		case p.out <- f:
			return
		default:
		}
		// The buffer is full: drop the stale frame and try again.
		select {
		case <-p.out:
		default:
		}
	}
}

// stopped reports whether Stop was called or ctx ended.
func (p *pump) stopped(ctx context.Context) bool {
	select {
	case <-p.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
