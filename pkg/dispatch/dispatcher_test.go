package dispatch

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"freshkeeper/pkg/camera"
	"freshkeeper/pkg/config"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/metrics"
	"freshkeeper/pkg/recognize"
	"freshkeeper/pkg/session"
)

// fakeSource lets tests push frames by hand.
type fakeSource struct {
	out     chan *camera.Frame
	err     error
	stopped atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{out: make(chan *camera.Frame)}
}

func (s *fakeSource) Start(context.Context) error  { return nil }
func (s *fakeSource) Frames() <-chan *camera.Frame { return s.out }
func (s *fakeSource) Err() error                   { return s.err }
func (s *fakeSource) Stop()                        { s.stopped.Store(true) }

func (s *fakeSource) push(seq uint64, label string) {
	s.out <- &camera.Frame{
		Seq:        seq,
		CapturedAt: time.Now(),
		Image:      image.NewGray(image.Rect(0, 0, 8, 8)),
		LabelText:  label,
	}
}

// scriptedDecoder returns its queued values one per call, blocking on gate
// first when one is set.
type scriptedDecoder struct {
	calls   atomic.Int64
	gate    chan struct{}
	barcode *recognize.Barcode
}

func (d *scriptedDecoder) DecodeSymbols(ctx context.Context, snap recognize.Snapshot) ([]recognize.Barcode, error) {
	d.calls.Add(1)
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.barcode == nil {
		return nil, nil
	}
	return []recognize.Barcode{*d.barcode}, nil
}

type echoRecognizer struct {
	calls atomic.Int64
}

func (r *echoRecognizer) RecognizeText(_ context.Context, snap recognize.Snapshot) (string, error) {
	r.calls.Add(1)
	return snap.LabelText, nil
}

func testContext() *opctx.OperationContext {
	return opctx.NewContext(&config.Config{}, metrics.NewRecorder())
}

func futureDate() string {
	return time.Now().AddDate(1, 0, 0).Format("02.01.2006")
}

func TestSingleFrameInFlightPerAdapter(t *testing.T) {
	oc := testContext()
	src := newFakeSource()
	dec := &scriptedDecoder{gate: make(chan struct{})}
	sess := session.New(time.Minute)
	sess.Start()
	d := New(oc, sess, src,
		recognize.NewBarcodeAdapter(dec),
		recognize.NewTextAdapter(&echoRecognizer{}), time.Minute)
	go d.Run(context.Background())

	// The first frame occupies the barcode slot; the next two must be
	// dropped, not queued.
	src.push(1, "")
	src.push(2, "")
	src.push(3, "")
	time.Sleep(50 * time.Millisecond)
	if got := dec.calls.Load(); got != 1 {
		t.Fatalf("decoder saw %d frames while busy, want 1", got)
	}

	// Releasing the handle frees the slot for exactly one more frame.
	close(dec.gate)
	src.push(4, "")
	deadline := time.Now().Add(time.Second)
	for dec.calls.Load() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("decoder calls = %d, want 2 after release", dec.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	sess.Cancel()
}

func TestTextAdapterOnlyRunsAfterBarcode(t *testing.T) {
	oc := testContext()
	src := newFakeSource()
	dec := &scriptedDecoder{}
	rec := &echoRecognizer{}
	sess := session.New(time.Minute)
	sess.Start()
	d := New(oc, sess, src,
		recognize.NewBarcodeAdapter(dec),
		recognize.NewTextAdapter(rec), time.Minute)
	go d.Run(context.Background())

	src.push(1, "no date here")
	time.Sleep(50 * time.Millisecond)
	if got := rec.calls.Load(); got != 0 {
		t.Fatalf("recognizer ran %d times before a barcode was found", got)
	}

	sess.OfferBarcode(recognize.Barcode{Value: "96385074", Symbology: recognize.EAN8})
	src.push(2, "no date here")
	deadline := time.Now().Add(time.Second)
	for rec.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("recognizer never ran in the date phase")
		}
		time.Sleep(time.Millisecond)
	}
	sess.Cancel()
}

func TestPipelineCompletesOnLabelDate(t *testing.T) {
	oc := testContext()
	src := newFakeSource()
	dec := &scriptedDecoder{barcode: &recognize.Barcode{Value: "4006381333931", Symbology: recognize.EAN13}}
	sess := session.New(time.Minute)
	sess.Start()
	d := New(oc, sess, src,
		recognize.NewBarcodeAdapter(dec),
		recognize.NewTextAdapter(&echoRecognizer{}), time.Minute)
	go d.Run(context.Background())

	label := "Mindestens haltbar bis " + futureDate()
	go func() {
		for seq := uint64(1); ; seq++ {
			f := &camera.Frame{
				Seq:        seq,
				CapturedAt: time.Now(),
				Image:      image.NewGray(image.Rect(0, 0, 8, 8)),
				LabelText:  label,
			}
			select {
			case src.out <- f:
			case <-sess.Terminated():
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	select {
	case r := <-sess.Done():
		if r.Phase != session.Completed {
			t.Fatalf("phase = %s, want Completed", r.Phase)
		}
		if r.Barcode == nil || r.Barcode.Value != "4006381333931" {
			t.Fatalf("barcode = %v", r.Barcode)
		}
		if r.Expiry == nil {
			t.Fatal("expected a normalized date from the label text")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never completed")
	}
}

func TestWatchdogFailsSessionOnStuckHandle(t *testing.T) {
	oc := testContext()
	src := newFakeSource()
	dec := &scriptedDecoder{gate: make(chan struct{})} // never opened
	sess := session.New(time.Minute)
	sess.Start()
	d := New(oc, sess, src,
		recognize.NewBarcodeAdapter(dec),
		recognize.NewTextAdapter(&echoRecognizer{}), 50*time.Millisecond)
	go d.Run(context.Background())

	src.push(1, "")

	select {
	case r := <-sess.Done():
		if r.Phase != session.Cancelled {
			t.Fatalf("phase = %s, want Cancelled", r.Phase)
		}
		if r.Err == nil {
			t.Fatal("expected ErrFrameLeak on the result")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchdog never fired")
	}
	close(dec.gate)
}

func TestSourceFailureCancelsSession(t *testing.T) {
	oc := testContext()
	src := newFakeSource()
	src.err = context.DeadlineExceeded
	sess := session.New(time.Minute)
	sess.Start()
	d := New(oc, sess, src,
		recognize.NewBarcodeAdapter(&scriptedDecoder{}),
		recognize.NewTextAdapter(&echoRecognizer{}), time.Minute)
	go d.Run(context.Background())

	close(src.out)

	select {
	case r := <-sess.Done():
		if r.Phase != session.Cancelled || r.Err == nil {
			t.Fatalf("result = %+v, want cancelled with error", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session never failed")
	}
}

func TestDispatcherStopsSourceOnTermination(t *testing.T) {
	oc := testContext()
	src := newFakeSource()
	sess := session.New(time.Minute)
	sess.Start()
	d := New(oc, sess, src,
		recognize.NewBarcodeAdapter(&scriptedDecoder{}),
		recognize.NewTextAdapter(&echoRecognizer{}), time.Minute)
	running := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(running)
	}()

	sess.Cancel()
	select {
	case <-running:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not return after session termination")
	}
	if !src.stopped.Load() {
		t.Fatal("source was not stopped")
	}
}
