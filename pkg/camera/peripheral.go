package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/metrics"
)

// PeripheralSource drives a physical camera by shelling out to the
// platform's still-capture command for every frame. Capture latency sets the
// natural frame cadence, so no ticker is used. A failing capture command is
// a source-level failure: the session cannot make progress without frames.
type PeripheralSource struct {
	pump
	oc  *opctx.OperationContext
	seq atomic.Uint64
}

// NewPeripheralSource creates a source that captures stills with the
// platform command configured for the current system.
func NewPeripheralSource(oc *opctx.OperationContext) *PeripheralSource {
	return &PeripheralSource{pump: newPump(), oc: oc}
}

func (s *PeripheralSource) Start(ctx context.Context) error {
	go s.run(ctx)
	return nil
}

func (s *PeripheralSource) run(ctx context.Context) {
	defer close(s.out)

	for !s.stopped(ctx) {
		frame, err := s.capture()
		if err != nil {
			s.fail(err)
			return
		}
		s.offer(frame)
	}
}

// capture takes one picture and decodes it into a frame.
func (s *PeripheralSource) capture() (*Frame, error) {
	stillPath := fmt.Sprintf("%s/still_%d.jpg", s.oc.Config.PicturePath, time.Now().UnixNano())
	cmdName, args := s.oc.Config.GetCaptureCommand(stillPath)

	err := s.oc.Recorder.RecordLeaf("TakePicture", metrics.MCameraCapture, func() error {
		cmd := exec.Command(cmdName, args...)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("camera command '%s' failed: %w, output: %s", cmdName, err, string(output))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(stillPath)
	if err != nil {
		return nil, fmt.Errorf("could not read captured still %s: %w", stillPath, err)
	}

	img, err := decodeStill(data)
	if err != nil {
		return nil, fmt.Errorf("captured still %s: %w", stillPath, err)
	}

	seq := s.seq.Add(1)
	log.Trace("captured frame %d (%s)", seq, stillPath)
	return &Frame{Seq: seq, CapturedAt: time.Now(), Image: img}, nil
}
