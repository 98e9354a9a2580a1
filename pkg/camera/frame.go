package camera

import (
	"image"
	"sync"
	"time"
)

// Frame is one captured camera image. Simulated sources additionally carry
// the ground-truth printed label text so the sidecar OCR backend can return
// it verbatim.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Image      image.Image
	LabelText  string
}

// Handle is a per-analyzer borrow of a frame. The analyzer that receives a
// handle must release it exactly once on every path; releasing frees the
// analyzer's dispatch slot so the next frame can be delivered. Release is
// idempotent so a defer on the analyzer side can never double-fire the hook.
type Handle struct {
	frame     *Frame
	once      sync.Once
	onRelease func()
}

// NewHandle wraps a frame for delivery to a single analyzer. onRelease runs
// exactly once, on the first Release call.
func NewHandle(f *Frame, onRelease func()) *Handle {
	return &Handle{frame: f, onRelease: onRelease}
}

func (h *Handle) Seq() uint64 { return h.frame.Seq }

func (h *Handle) Image() image.Image { return h.frame.Image }

func (h *Handle) LabelText() string { return h.frame.LabelText }

// Release returns the frame to the dispatcher. Only the first call has an
// effect.
func (h *Handle) Release() {
	h.once.Do(func() {
		if h.onRelease != nil {
			h.onRelease()
		}
	})
}
