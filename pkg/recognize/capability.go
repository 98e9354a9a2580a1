package recognize

import (
	"context"
	"image"
)

// Barcode is one decoded symbol. Immutable once produced.
type Barcode struct {
	Value     string
	Symbology Symbology
}

// RecognizedText is one OCR pass over one frame; Raw may be empty.
type RecognizedText struct {
	Raw string
}

// Snapshot is the owned data an adapter hands to a capability. It carries no
// reference back to the frame, so capabilities cannot hold frames alive.
type Snapshot struct {
	Image image.Image
	// LabelText is the ground-truth printed text carried by simulated
	// frames; only the sidecar recognizer reads it.
	LabelText string
}

// BarcodeDecoder decodes symbols from a snapshot. Decoders are constructed
// with the symbology set they are allowed to report; anything else in the
// image is invisible to them. When several symbols are present in one
// snapshot, the order of the returned slice is not guaranteed.
type BarcodeDecoder interface {
	DecodeSymbols(ctx context.Context, snap Snapshot) ([]Barcode, error)
}

// TextRecognizer runs one OCR pass over a snapshot. Any concrete recognizer
// (a vision model, a platform OCR service, a test double) satisfies this.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, snap Snapshot) (string, error)
}
