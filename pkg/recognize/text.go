package recognize

import (
	"context"

	"freshkeeper/pkg/camera"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/metrics"
)

// TextAdapter runs one OCR pass per dispatched frame. OCR misses are
// expected and frequent, not exceptional: a failing recognizer yields an
// empty RecognizedText, never an error. Same frame-release guarantee as the
// barcode adapter.
type TextAdapter struct {
	recognizer TextRecognizer
}

// NewTextAdapter wraps an OCR capability.
func NewTextAdapter(recognizer TextRecognizer) *TextAdapter {
	return &TextAdapter{recognizer: recognizer}
}

// Analyze recognizes the text visible in one frame.
func (a *TextAdapter) Analyze(ctx context.Context, oc *opctx.OperationContext, h *camera.Handle) RecognizedText {
	defer h.Release()

	snap := Snapshot{Image: h.Image(), LabelText: h.LabelText()}

	var raw string
	err := oc.Recorder.RecordLeaf("TextRecognize", metrics.MTextRecognize, func() error {
		var err error
		raw, err = a.recognizer.RecognizeText(ctx, snap)
		return err
	})
	if err != nil {
		log.Debug("text pass on frame %d failed: %v", h.Seq(), err)
		return RecognizedText{}
	}
	return RecognizedText{Raw: raw}
}
