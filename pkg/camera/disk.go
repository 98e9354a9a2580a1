package camera

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/metrics"
)

// DiskSource produces frames from a product label PDF on disk. It emits two
// alternating views of the label, the way a user sweeps a package in front
// of the camera: the embedded symbol image extracted from the PDF (a crisp
// close-up of the barcode) and a raster of the whole page (where the printed
// best-before line is visible). The page's text layer is carried as the
// frame's label text.
type DiskSource struct {
	pump
	oc       *opctx.OperationContext
	path     string
	interval time.Duration
	seq      atomic.Uint64

	symbolImg image.Image
	pageImg   image.Image
	pageText  string
}

// NewDiskSource creates a source backed by the label PDF at path.
func NewDiskSource(oc *opctx.OperationContext, path string) *DiskSource {
	return &DiskSource{
		pump:     newPump(),
		oc:       oc,
		path:     path,
		interval: oc.Config.FrameInterval,
	}
}

// ListLabels returns the label PDFs under dir in name order.
func ListLabels(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list label directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".pdf" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Start loads and prepares both label views before frame delivery begins.
func (s *DiskSource) Start(ctx context.Context) error {
	err := s.oc.Recorder.RecordLeaf("LoadLabel", metrics.MDiskRead, func() error {
		return s.load()
	})
	if err != nil {
		return fmt.Errorf("failed to prepare label %s: %w", s.path, err)
	}
	go s.run(ctx)
	return nil
}

func (s *DiskSource) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", s.path, err)
	}

	if s.symbolImg, err = extractSymbolImage(s.path); err != nil {
		return err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", s.path, err)
	}
	defer doc.Close()

	if s.pageImg, err = doc.Image(0); err != nil {
		return fmt.Errorf("could not rasterize page of %s: %w", s.path, err)
	}
	if s.pageText, err = doc.Text(0); err != nil {
		return fmt.Errorf("could not extract text of %s: %w", s.path, err)
	}
	return nil
}

// extractSymbolImage pulls the embedded barcode image out of the PDF wrapper.
func extractSymbolImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer file.Close()

	extractedImages, err := api.ExtractImagesRaw(file, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("could not extract images from %s: %w", path, err)
	}

	for _, imgs := range extractedImages {
		for _, img := range imgs {
			decoded, _, err := image.Decode(img)
			if err != nil {
				return nil, fmt.Errorf("embedded image in %s did not decode: %w", path, err)
			}
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("no embedded symbol image found in %s", path)
}

func (s *DiskSource) run(ctx context.Context) {
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
			seq := s.seq.Add(1)
			f := &Frame{Seq: seq, CapturedAt: time.Now()}
			if seq%2 == 1 {
				f.Image = s.symbolImg
			} else {
				f.Image = s.pageImg
				f.LabelText = s.pageText
			}
			s.offer(f)
		}
	}
}
