package recognize

import (
	"context"
	"fmt"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZxingDecoder decodes barcodes with the gozxing library. One reader per
// enabled symbology is tried in whitelist order; the search stops at the
// first symbology that yields a symbol. A decoder instance handles one
// snapshot at a time.
type ZxingDecoder struct {
	readers []symbologyReader
}

type symbologyReader struct {
	symbology Symbology
	reader    gozxing.Reader
}

// NewZxingDecoder creates a decoder restricted to the given symbology set.
func NewZxingDecoder(symbologies []Symbology) (*ZxingDecoder, error) {
	d := &ZxingDecoder{}
	for _, s := range symbologies {
		r, err := newReader(s)
		if err != nil {
			return nil, err
		}
		d.readers = append(d.readers, symbologyReader{symbology: s, reader: r})
	}
	if len(d.readers) == 0 {
		return nil, fmt.Errorf("no symbologies enabled")
	}
	return d, nil
}

func newReader(s Symbology) (gozxing.Reader, error) {
	switch s {
	case EAN13:
		return oned.NewEAN13Reader(), nil
	case EAN8:
		return oned.NewEAN8Reader(), nil
	case UPCA:
		return oned.NewUPCAReader(), nil
	case UPCE:
		return oned.NewUPCEReader(), nil
	case Code39:
		return oned.NewCode39Reader(), nil
	case Code128:
		return oned.NewCode128Reader(), nil
	case QR:
		return qrcode.NewQRCodeReader(), nil
	default:
		return nil, fmt.Errorf("no reader for symbology %v", s)
	}
}

// DecodeSymbols finds and decodes a symbol within the snapshot image.
func (d *ZxingDecoder) DecodeSymbols(ctx context.Context, snap Snapshot) ([]Barcode, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(snap.Image)
	if err != nil {
		return nil, fmt.Errorf("gozxing.NewBinaryBitmapFromImage failed: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	for _, sr := range d.readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := sr.reader.Decode(bmp, hints)
		if err != nil {
			// Not found under this symbology; try the next one.
			continue
		}
		return []Barcode{{Value: result.GetText(), Symbology: sr.symbology}}, nil
	}

	// Nothing decodable in this frame. Expected and frequent.
	return nil, nil
}
