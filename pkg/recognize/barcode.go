package recognize

import (
	"context"

	"freshkeeper/pkg/camera"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/metrics"
)

// BarcodeAdapter runs one barcode pass per dispatched frame. It is the only
// place a frame handle crosses into decoding: the handle is released exactly
// once on every path, and only owned data (the decoded Barcode) outlives the
// call. Decoder failures never escape; they become "no symbol this frame".
type BarcodeAdapter struct {
	decoder BarcodeDecoder
}

// NewBarcodeAdapter wraps a decoding capability.
func NewBarcodeAdapter(decoder BarcodeDecoder) *BarcodeAdapter {
	return &BarcodeAdapter{decoder: decoder}
}

// Analyze decodes one frame. It returns the first symbol found, or nil if
// the frame held nothing decodable. Callers must not depend on which of
// several simultaneous symbols is reported first.
func (a *BarcodeAdapter) Analyze(ctx context.Context, oc *opctx.OperationContext, h *camera.Handle) *Barcode {
	defer h.Release()

	snap := Snapshot{Image: h.Image(), LabelText: h.LabelText()}

	var found *Barcode
	err := oc.Recorder.RecordLeaf("BarcodeDecode", metrics.MBarcodeDecode, func() error {
		symbols, err := a.decoder.DecodeSymbols(ctx, snap)
		if err != nil {
			return err
		}
		if len(symbols) > 0 {
			b := symbols[0]
			found = &b
		}
		return nil
	})
	if err != nil {
		log.Debug("barcode pass on frame %d failed: %v", h.Seq(), err)
		return nil
	}
	return found
}
