package label

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"freshkeeper/pkg/config"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/metrics"
	"freshkeeper/pkg/recognize"
)

func TestRenderCodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		sym   recognize.Symbology
		value string
	}{
		{"EAN-13", recognize.EAN13, "4006381333931"},
		{"EAN-8", recognize.EAN8, "96385074"},
		{"Code-128", recognize.Code128, "LOT 4711 TOMATO"},
		{"QR", recognize.QR, "COFFEE-0815"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := RenderCode(tc.sym, tc.value)
			if err != nil {
				t.Fatalf("RenderCode: %v", err)
			}

			dec, err := recognize.NewZxingDecoder([]recognize.Symbology{tc.sym})
			if err != nil {
				t.Fatalf("NewZxingDecoder: %v", err)
			}
			symbols, err := dec.DecodeSymbols(context.Background(), recognize.Snapshot{Image: img})
			if err != nil {
				t.Fatalf("DecodeSymbols: %v", err)
			}
			if len(symbols) != 1 {
				t.Fatalf("decoded %d symbols, want 1", len(symbols))
			}
			if symbols[0].Value != tc.value {
				t.Fatalf("round trip gave %q, want %q", symbols[0].Value, tc.value)
			}
			if symbols[0].Symbology != tc.sym {
				t.Fatalf("symbology = %s, want %s", symbols[0].Symbology, tc.sym)
			}
		})
	}
}

func TestRenderCodeUnsupportedSymbology(t *testing.T) {
	if _, err := RenderCode(recognize.UPCE, "01234565"); err == nil {
		t.Fatal("expected an error for a symbology without an encoder")
	}
}

func TestCatalogDatesStayInsideWindow(t *testing.T) {
	now := time.Now()
	products := Catalog(now)
	if len(products) < 5 {
		t.Fatalf("catalog has %d products", len(products))
	}
	withDate := 0
	for _, p := range products {
		if p.DateLine != "" {
			withDate++
		}
	}
	if withDate < 4 {
		t.Fatalf("only %d products carry a date line", withDate)
	}
}

func TestWriteLabel(t *testing.T) {
	dir := t.TempDir()
	oc := opctx.NewContext(&config.Config{}, metrics.NewRecorder())

	p := Catalog(time.Now())[0]
	path, err := WriteLabel(oc, p, dir)
	if err != nil {
		t.Fatalf("WriteLabel: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("label written to %s, want inside %s", path, dir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading label: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("label file is not a PDF")
	}
	if len(data) < 1000 {
		t.Fatalf("label PDF suspiciously small: %d bytes", len(data))
	}
}
