package camera

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	opctx "freshkeeper/pkg/context"
)

// CoreSource synthesizes frames of a single product entirely in memory, for
// pure-computation runs and tests. Every frame shows the same pre-rendered
// symbol image and carries the product's printed label text.
type CoreSource struct {
	pump
	oc        *opctx.OperationContext
	img       image.Image
	labelText string
	interval  time.Duration
	seq       atomic.Uint64
}

// NewCoreSource creates an in-memory source emitting the given symbol image
// and label text at the configured frame cadence.
func NewCoreSource(oc *opctx.OperationContext, img image.Image, labelText string) *CoreSource {
	return &CoreSource{
		pump:      newPump(),
		oc:        oc,
		img:       img,
		labelText: labelText,
		interval:  oc.Config.FrameInterval,
	}
}

func (s *CoreSource) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

func (s *CoreSource) run(ctx context.Context) {
	defer close(s.out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.offer(&Frame{
				Seq:        s.seq.Add(1),
				CapturedAt: time.Now(),
				Image:      s.img,
				LabelText:  s.labelText,
			})
		}
	}
}
