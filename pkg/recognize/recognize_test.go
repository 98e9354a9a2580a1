package recognize

import (
	"context"
	"errors"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"freshkeeper/pkg/camera"
	"freshkeeper/pkg/config"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/metrics"
)

func TestParseSymbology(t *testing.T) {
	tests := []struct {
		in   string
		want Symbology
	}{
		{"EAN13", EAN13},
		{"ean-13", EAN13},
		{"EAN8", EAN8},
		{"upca", UPCA},
		{"UPC-E", UPCE},
		{"code39", Code39},
		{"CODE128", Code128},
		{"qr", QR},
	}
	for _, tc := range tests {
		got, err := ParseSymbology(tc.in)
		if err != nil {
			t.Fatalf("ParseSymbology(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSymbology(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}

	if _, err := ParseSymbology("datamatrix"); err == nil {
		t.Fatal("expected an error for an unknown symbology")
	}
}

func encodeCode128(t *testing.T, value string) Snapshot {
	t.Helper()
	img, err := oned.NewCode128Writer().Encode(value, gozxing.BarcodeFormat_CODE_128, 300, 100, nil)
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return Snapshot{Image: img}
}

func TestZxingDecoderDecodesEnabledSymbology(t *testing.T) {
	dec, err := NewZxingDecoder([]Symbology{Code128})
	if err != nil {
		t.Fatal(err)
	}

	symbols, err := dec.DecodeSymbols(context.Background(), encodeCode128(t, "LOT 4711"))
	if err != nil {
		t.Fatalf("DecodeSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Value != "LOT 4711" || symbols[0].Symbology != Code128 {
		t.Fatalf("symbols = %+v", symbols)
	}
}

func TestZxingDecoderHonorsWhitelist(t *testing.T) {
	dec, err := NewZxingDecoder([]Symbology{QR})
	if err != nil {
		t.Fatal(err)
	}

	symbols, err := dec.DecodeSymbols(context.Background(), encodeCode128(t, "LOT 4711"))
	if err != nil {
		t.Fatalf("DecodeSymbols: %v", err)
	}
	if symbols != nil {
		t.Fatalf("decoded %+v with the symbology disabled", symbols)
	}
}

func TestNewZxingDecoderRejectsEmptyWhitelist(t *testing.T) {
	if _, err := NewZxingDecoder(nil); err == nil {
		t.Fatal("expected an error for an empty symbology set")
	}
}

// countingHandle wraps a frame and counts releases.
func countingHandle(released *int) *camera.Handle {
	f := &camera.Frame{Seq: 1, Image: nil, LabelText: "text"}
	return camera.NewHandle(f, func() { *released++ })
}

type erroringDecoder struct{}

func (erroringDecoder) DecodeSymbols(context.Context, Snapshot) ([]Barcode, error) {
	return nil, errors.New("luminance source failure")
}

type fixedDecoder struct{ b Barcode }

func (d fixedDecoder) DecodeSymbols(context.Context, Snapshot) ([]Barcode, error) {
	return []Barcode{d.b}, nil
}

type erroringRecognizer struct{}

func (erroringRecognizer) RecognizeText(context.Context, Snapshot) (string, error) {
	return "", errors.New("backend unavailable")
}

func testOpCtx() *opctx.OperationContext {
	return opctx.NewContext(&config.Config{}, metrics.NewRecorder())
}

func TestBarcodeAdapterReleasesOnSuccess(t *testing.T) {
	released := 0
	a := NewBarcodeAdapter(fixedDecoder{b: Barcode{Value: "96385074", Symbology: EAN8}})

	b := a.Analyze(context.Background(), testOpCtx(), countingHandle(&released))
	if b == nil || b.Value != "96385074" {
		t.Fatalf("barcode = %v", b)
	}
	if released != 1 {
		t.Fatalf("handle released %d times, want 1", released)
	}
}

func TestBarcodeAdapterSwallowsErrors(t *testing.T) {
	released := 0
	a := NewBarcodeAdapter(erroringDecoder{})

	if b := a.Analyze(context.Background(), testOpCtx(), countingHandle(&released)); b != nil {
		t.Fatalf("barcode = %v, want nil on a capability error", b)
	}
	if released != 1 {
		t.Fatalf("handle released %d times, want 1", released)
	}
}

func TestTextAdapterSwallowsErrors(t *testing.T) {
	released := 0
	a := NewTextAdapter(erroringRecognizer{})

	txt := a.Analyze(context.Background(), testOpCtx(), countingHandle(&released))
	if txt.Raw != "" {
		t.Fatalf("text = %q, want empty on a capability error", txt.Raw)
	}
	if released != 1 {
		t.Fatalf("handle released %d times, want 1", released)
	}
}

func TestSidecarRecognizerEchoesLabelText(t *testing.T) {
	r := NewSidecarRecognizer()
	got, err := r.RecognizeText(context.Background(), Snapshot{LabelText: "MHD 01.02.2030"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "MHD 01.02.2030" {
		t.Fatalf("RecognizeText = %q", got)
	}
}
