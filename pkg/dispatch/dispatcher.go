// Package dispatch moves frames from a camera source into the recognition
// adapters. Each adapter holds at most one frame at a time; while an adapter
// is busy newer frames are simply dropped, so a slow recognizer sees the
// freshest frame available when it next becomes ready instead of a backlog.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"freshkeeper/pkg/camera"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/recognize"
	"freshkeeper/pkg/session"
)

// ErrFrameLeak reports an analyzer that held its frame handle past the
// watchdog bound. A leaked handle would stall its dispatch slot forever, so
// the session is aborted instead of silently freezing.
var ErrFrameLeak = xerrors.New("dispatch: frame handle not released within bound")

// ErrSourceFailed reports that the camera source stopped delivering frames
// before the session finished.
var ErrSourceFailed = xerrors.New("dispatch: frame source failed")

// Dispatcher fans frames out to the barcode and text adapters and feeds
// their results into the session.
type Dispatcher struct {
	oc       *opctx.OperationContext
	sess     *session.Session
	src      camera.Source
	barcodes *recognize.BarcodeAdapter
	texts    *recognize.TextAdapter
	bound    time.Duration

	barcodeSlot chan struct{}
	textSlot    chan struct{}
}

// New wires a dispatcher. bound is the watchdog limit on how long an adapter
// may hold a frame handle before the session is failed.
func New(oc *opctx.OperationContext, sess *session.Session, src camera.Source,
	barcodes *recognize.BarcodeAdapter, texts *recognize.TextAdapter, bound time.Duration) *Dispatcher {
	return &Dispatcher{
		oc:          oc,
		sess:        sess,
		src:         src,
		barcodes:    barcodes,
		texts:       texts,
		bound:       bound,
		barcodeSlot: make(chan struct{}, 1),
		textSlot:    make(chan struct{}, 1),
	}
}

// Run pumps frames until the session terminates or the source ends. It
// returns after stopping the source; in-flight analyzer goroutines may still
// be draining, their results are discarded by the terminated session.
func (d *Dispatcher) Run(ctx context.Context) {
	frames := d.src.Frames()
	for {
		select {
		case <-d.sess.Terminated():
			d.src.Stop()
			return
		case <-ctx.Done():
			d.src.Stop()
			d.sess.Fail(xerrors.Errorf("dispatch: %w", ctx.Err()))
			return
		case f, ok := <-frames:
			if !ok {
				if err := d.src.Err(); err != nil {
					log.Error("frame source failed: %v", err)
					d.sess.Fail(xerrors.Errorf("%w: %v", ErrSourceFailed, err))
				}
				return
			}
			d.offer(ctx, f)
		}
	}
}

// offer routes one frame. The barcode adapter is fed in both scanning
// phases so a late or re-scanned symbol is still decoded; the text adapter
// only runs once a barcode fixed the product.
func (d *Dispatcher) offer(ctx context.Context, f *camera.Frame) {
	phase := d.sess.Phase()
	switch phase {
	case session.AwaitingBarcode, session.AwaitingExpiryDate:
	default:
		return
	}

	if d.acquire(d.barcodeSlot) {
		d.launch(ctx, f, d.barcodeSlot, func(ctx context.Context, h *camera.Handle) {
			if b := d.barcodes.Analyze(ctx, d.oc, h); b != nil {
				d.sess.OfferBarcode(*b)
			}
		})
	}
	if phase == session.AwaitingExpiryDate && d.acquire(d.textSlot) {
		d.launch(ctx, f, d.textSlot, func(ctx context.Context, h *camera.Handle) {
			d.sess.OfferText(d.texts.Analyze(ctx, d.oc, h))
		})
	}
}

func (d *Dispatcher) acquire(slot chan struct{}) bool {
	select {
	case slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// launch hands the frame to one analyzer under its own handle. The slot is
// freed by the handle release, not by the analyzer returning, so the
// backpressure follows frame ownership exactly.
func (d *Dispatcher) launch(ctx context.Context, f *camera.Frame, slot chan struct{}, analyze func(context.Context, *camera.Handle)) {
	released := make(chan struct{})
	h := camera.NewHandle(f, func() {
		<-slot
		close(released)
	})
	go analyze(ctx, h)
	go d.watch(released, f.Seq)
}

func (d *Dispatcher) watch(released <-chan struct{}, seq uint64) {
	t := time.NewTimer(d.bound)
	defer t.Stop()
	select {
	case <-released:
	case <-t.C:
		log.Error("frame %d handle leaked past %s", seq, d.bound)
		d.sess.Fail(ErrFrameLeak)
	}
}
