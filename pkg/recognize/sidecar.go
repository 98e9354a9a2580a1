package recognize

import "context"

// SidecarRecognizer is the offline OCR backend for simulated runs: it
// returns the ground-truth label text carried by synthetic frames. Frames
// from a physical camera carry no sidecar text, so it recognizes nothing
// there.
type SidecarRecognizer struct{}

// NewSidecarRecognizer creates the pass-through recognizer.
func NewSidecarRecognizer() *SidecarRecognizer {
	return &SidecarRecognizer{}
}

func (r *SidecarRecognizer) RecognizeText(ctx context.Context, snap Snapshot) (string, error) {
	return snap.LabelText, nil
}
