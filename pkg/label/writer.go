package label

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"

	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/metrics"
	"freshkeeper/pkg/recognize"
)

const (
	qrCodeSize    = 512
	barcodeWidth  = 300
	barcodeHeight = 100

	labelWidthMM  = 90
	labelHeightMM = 54
)

// RenderCode encodes a product value into a symbol image.
func RenderCode(sym recognize.Symbology, value string) (image.Image, error) {
	var encoder gozxing.Writer
	var format gozxing.BarcodeFormat
	var width, height int
	var hints map[gozxing.EncodeHintType]interface{}

	switch sym {
	case recognize.EAN13:
		encoder = oned.NewEAN13Writer()
		format = gozxing.BarcodeFormat_EAN_13
		width, height = barcodeWidth, barcodeHeight
	case recognize.EAN8:
		encoder = oned.NewEAN8Writer()
		format = gozxing.BarcodeFormat_EAN_8
		width, height = barcodeWidth, barcodeHeight
	case recognize.Code39:
		encoder = oned.NewCode39Writer()
		format = gozxing.BarcodeFormat_CODE_39
		width, height = barcodeWidth, barcodeHeight
	case recognize.Code128:
		encoder = oned.NewCode128Writer()
		format = gozxing.BarcodeFormat_CODE_128
		width, height = barcodeWidth, barcodeHeight
	case recognize.QR:
		encoder = qrcode.NewQRCodeWriter()
		format = gozxing.BarcodeFormat_QR_CODE
		width, height = qrCodeSize, qrCodeSize
		hints = map[gozxing.EncodeHintType]interface{}{
			gozxing.EncodeHintType_ERROR_CORRECTION: decoder.ErrorCorrectionLevel_M,
		}
	default:
		return nil, fmt.Errorf("no encoder for symbology %s", sym)
	}

	img, err := encoder.Encode(value, format, width, height, hints)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q as %s: %w", value, sym, err)
	}
	return img, nil
}

// WriteLabel renders the product's symbol and lays out a label PDF: product
// name on top, the symbol in the middle, the best-before line underneath.
// The date line is placed as real PDF text so the page keeps a text layer.
func WriteLabel(ctx *opctx.OperationContext, p Product, dir string) (string, error) {
	filePath := filepath.Join(dir, p.FileName())
	// RecordLeaf, not Record: labels are written from worker goroutines.
	err := ctx.Recorder.RecordLeaf("WriteLabel_"+p.Symbology.String(), metrics.MDiskWrite, func() error {
		img, err := RenderCode(p.Symbology, p.Value)
		if err != nil {
			return err
		}

		file, err := os.Create(filePath)
		if err != nil {
			return fmt.Errorf("failed to create label file %s: %w", filePath, err)
		}
		defer file.Close()

		return writeLabelPDF(p, img, file)
	})
	if err != nil {
		return "", err
	}
	return filePath, nil
}

func writeLabelPDF(p Product, img image.Image, file *os.File) error {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return fmt.Errorf("jpeg encoding failed: %w", err)
	}

	pageSize := gofpdf.SizeType{Wd: labelWidthMM, Ht: labelHeightMM}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    pageSize,
	})
	pdf.AddPageFormat("P", pageSize)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Text(4, 8, p.Name)

	options := gofpdf.ImageOptions{ImageType: "JPEG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("code.jpg", options, buf)

	// The symbol keeps its aspect ratio inside a fixed band under the name.
	const bandTop, bandHeight = 11.0, 30.0
	w := labelWidthMM - 8.0
	h := w * float64(img.Bounds().Dy()) / float64(img.Bounds().Dx())
	if h > bandHeight {
		w = w * bandHeight / h
		h = bandHeight
	}
	pdf.ImageOptions("code.jpg", (labelWidthMM-w)/2, bandTop, w, h, false, options, 0, "")

	if p.DateLine != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(4, labelHeightMM-6, p.DateLine)
	}

	return pdf.Output(file)
}
