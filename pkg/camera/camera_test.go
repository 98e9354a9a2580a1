package camera

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"freshkeeper/pkg/config"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/metrics"
)

func TestHandleReleaseIsIdempotent(t *testing.T) {
	released := 0
	h := NewHandle(&Frame{Seq: 7}, func() { released++ })

	h.Release()
	h.Release()
	h.Release()

	if released != 1 {
		t.Fatalf("onRelease ran %d times, want 1", released)
	}
	if h.Seq() != 7 {
		t.Fatalf("Seq = %d after release, want 7", h.Seq())
	}
}

func TestPumpKeepsOnlyLatestFrame(t *testing.T) {
	p := newPump()

	p.offer(&Frame{Seq: 1})
	p.offer(&Frame{Seq: 2})
	p.offer(&Frame{Seq: 3})

	select {
	case f := <-p.Frames():
		if f.Seq != 3 {
			t.Fatalf("got frame %d, want the latest (3)", f.Seq)
		}
	default:
		t.Fatal("no frame buffered")
	}
}

func TestPumpOfferReturnsAfterStop(t *testing.T) {
	p := newPump()
	p.offer(&Frame{Seq: 1})
	p.Stop()
	p.Stop()

	done := make(chan struct{})
	go func() {
		p.offer(&Frame{Seq: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("offer blocked after Stop")
	}
}

func TestPumpFailKeepsFirstError(t *testing.T) {
	p := newPump()
	first := context.Canceled
	p.fail(first)
	p.fail(context.DeadlineExceeded)
	if p.Err() != first {
		t.Fatalf("Err = %v, want the first failure", p.Err())
	}
}

func TestCoreSourceDeliversFreshFrames(t *testing.T) {
	oc := opctx.NewContext(&config.Config{FrameInterval: time.Millisecond}, metrics.NewRecorder())
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	src := NewCoreSource(oc, img, "H-Milch 3,5%")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	// Let the source run ahead of the consumer, then check a frame.
	time.Sleep(30 * time.Millisecond)
	select {
	case f := <-src.Frames():
		if f.Seq < 2 {
			t.Fatalf("frame seq = %d, stale frames were not displaced", f.Seq)
		}
		if f.Image == nil || f.LabelText != "H-Milch 3,5%" {
			t.Fatalf("frame carries wrong payload: %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
	if err := src.Err(); err != nil {
		t.Fatalf("Err = %v, want nil", err)
	}
}

func TestCoreSourceStopClosesStream(t *testing.T) {
	oc := opctx.NewContext(&config.Config{FrameInterval: time.Millisecond}, metrics.NewRecorder())
	src := NewCoreSource(oc, image.NewGray(image.Rect(0, 0, 4, 4)), "")

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-src.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream never closed after Stop")
		}
	}
}

func TestDecodeStillPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}

	img, err := decodeStill(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeStill: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Fatalf("decoded bounds = %v", img.Bounds())
	}
}

func TestDecodeStillGarbage(t *testing.T) {
	if _, err := decodeStill([]byte("not an image at all")); err == nil {
		t.Fatal("expected an error for undecodable data")
	}
}

func TestIsHEIC(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"heic brand", []byte("\x00\x00\x00\x18ftypheic"), true},
		{"mif1 brand", []byte("\x00\x00\x00\x18ftypmif1"), true},
		{"jpeg magic", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), false},
		{"short", []byte("ftyp"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isHEIC(tc.data); got != tc.want {
				t.Fatalf("isHEIC = %t, want %t", got, tc.want)
			}
		})
	}
}
