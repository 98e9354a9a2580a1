package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"freshkeeper/pkg/camera"
	"freshkeeper/pkg/concurrency"
	"freshkeeper/pkg/config"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/dispatch"
	"freshkeeper/pkg/expiry"
	"freshkeeper/pkg/label"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/metrics"
	"freshkeeper/pkg/recognize"
	"freshkeeper/pkg/result"
	"freshkeeper/pkg/session"
)

// Scanner holds everything one scan run needs: the configured frame source,
// the two recognition adapters, and the product whose label is being scanned
// on the simulated tiers.
type Scanner struct {
	config   *config.Config
	metrics  *metrics.Recorder
	source   camera.Source
	barcodes *recognize.BarcodeAdapter
	texts    *recognize.TextAdapter
	product  label.Product
	closer   func()
}

func main() {
	// 1. Load configuration from flags.
	cfg := config.NewConfig()

	analyzer := metrics.NewAnalyzer()

	products := label.Catalog(time.Now())

	for run := uint64(0); run < cfg.Runs; run++ {
		log.Info("----- Starting run %d of %d -----", run+1, cfg.Runs)

		rec := metrics.NewRecorder()
		product := products[run%uint64(len(products))]

		sc, err := NewScanner(cfg, rec, product)
		if err != nil {
			log.Fatalf("Failed to initialize scanner: %v", err)
		}

		if err = sc.metrics.Record("ScanSession", metrics.MLogic, func() error {
			return sc.Run()
		}); err != nil {
			log.Fatalf("Failed to run scan session: %v", err)
		}
		sc.Close()

		if cfg.PrintMetrics {
			rec.PrintTree(os.Stdout, cfg.MaxDepth, cfg.MaxChildren)
		}

		analyzer.Add(rec)
	}

	finalAnalysis := analyzer.Analyze()

	resultsWriter := result.NewWriter(cfg.ResultsPath, cfg.System, string(cfg.HardwareType), cfg.Runs)
	if err := resultsWriter.WriteAllResults(finalAnalysis); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	printConsoleSummary(finalAnalysis)
}

func printConsoleSummary(res metrics.AnalysisResult) {
	fmt.Println("\n-------------------------------------------------")
	fmt.Printf("--- Median Times (Per Scan Session) ---\n")
	fmt.Println("-------------------------------------------------")

	comp, ok := res.Components["ScanSession"]
	if !ok {
		return
	}
	derived := []string{"WallClock", "Logic", "CameraCapture", "DiskRead", "BarcodeDecode", "TextRecognize"}
	for _, name := range derived {
		if summary, ok := comp.Summaries[name]; ok {
			fmt.Printf("Median %-16s Time: %s\n", name, summary.WallClock.P50)
		}
	}
	fmt.Println("-------------------------------------------------")
}

// NewScanner creates and initializes all components required for a scan run.
func NewScanner(cfg *config.Config, rec *metrics.Recorder, product label.Product) (*Scanner, error) {
	log.Debug("Initializing recognition capabilities and frame source")

	oc := opctx.NewContext(cfg, rec)
	sc := &Scanner{config: cfg, metrics: rec, product: product, closer: func() {}}

	symbologies, err := recognize.ParseSymbologies(cfg.SymbologyNames())
	if err != nil {
		return nil, err
	}
	decoder, err := recognize.NewZxingDecoder(symbologies)
	if err != nil {
		return nil, err
	}
	sc.barcodes = recognize.NewBarcodeAdapter(decoder)

	switch cfg.OCR {
	case config.OCRSidecar:
		sc.texts = recognize.NewTextAdapter(recognize.NewSidecarRecognizer())
	case config.OCRGemini:
		gem, err := recognize.NewGeminiRecognizer(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini backend: %w", err)
		}
		sc.texts = recognize.NewTextAdapter(gem)
		sc.closer = func() { _ = gem.Close() }
	default:
		return nil, fmt.Errorf("unknown OCR backend: %q", cfg.OCR)
	}

	sc.source, err = newSource(oc, cfg, product)
	if err != nil {
		return nil, err
	}

	return sc, nil
}

// newSource builds the frame source for the configured hardware tier. The
// Disk tier generates the label fixtures on first use.
func newSource(oc *opctx.OperationContext, cfg *config.Config, product label.Product) (camera.Source, error) {
	switch cfg.HardwareType {
	case config.HWCore:
		img, err := label.RenderCode(product.Symbology, product.Value)
		if err != nil {
			return nil, err
		}
		return camera.NewCoreSource(oc, img, product.Name+"\n"+product.DateLine), nil

	case config.HWDisk:
		path, err := ensureLabel(oc, cfg, product)
		if err != nil {
			return nil, err
		}
		return camera.NewDiskSource(oc, path), nil

	case config.HWPeripheral:
		return camera.NewPeripheralSource(oc), nil

	default:
		return nil, fmt.Errorf("unknown hardware type: %q", cfg.HardwareType)
	}
}

// ensureLabel returns the product's label PDF path, generating the whole
// fixture catalog on the first run.
func ensureLabel(oc *opctx.OperationContext, cfg *config.Config, product label.Product) (string, error) {
	existing, err := camera.ListLabels(cfg.LabelPath)
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		log.Info("No labels in %s, generating fixture catalog...", cfg.LabelPath)
		products := label.Catalog(time.Now())
		if err := concurrency.ForEach(oc, products, func(_ int, p label.Product) error {
			_, werr := label.WriteLabel(oc, p, cfg.LabelPath)
			return werr
		}); err != nil {
			return "", fmt.Errorf("failed to generate labels: %w", err)
		}
	}
	return filepath.Join(cfg.LabelPath, product.FileName()), nil
}

// Run drives one scan session to a terminal state.
func (s *Scanner) Run() error {
	log.Info("Scanning %q on '%s' hardware...", s.product.Name, s.config.HardwareType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start frame source: %w", err)
	}

	oc := opctx.NewContext(s.config, s.metrics)
	sess := session.New(s.config.DateDeadline)
	sess.Start()

	d := dispatch.New(oc, sess, s.source, s.barcodes, s.texts, s.config.WatchdogBound)
	go d.Run(ctx)

	// The session terminates on its own once a barcode is found; the guard
	// below only catches a source that never produces a decodable frame.
	guard := 2*s.config.WatchdogBound + s.config.DateDeadline + 30*time.Second
	select {
	case r := <-sess.Done():
		return s.report(r)
	case <-time.After(guard):
		sess.Cancel()
		<-sess.Done()
		return fmt.Errorf("scan session made no progress within %s", guard)
	}
}

// report logs the terminal session state and surfaces pipeline failures.
func (s *Scanner) report(r session.Result) error {
	if r.Err != nil {
		return fmt.Errorf("scan session failed: %w", r.Err)
	}
	switch {
	case r.Phase == session.Cancelled:
		log.Info("Scan cancelled")
	case r.Barcode == nil:
		log.Info("Scan completed without a barcode")
	case r.Expiry == nil:
		log.Info("Scanned %s (%s), no expiry date found", r.Barcode.Value, r.Barcode.Symbology)
	default:
		log.Info("Scanned %s (%s), expires %s (%s)",
			r.Barcode.Value, r.Barcode.Symbology,
			r.Expiry.Time().Format("2006-01-02"), kindName(r.Expiry.Kind))
	}
	return nil
}

func kindName(k expiry.Kind) string {
	if k == expiry.KindPartial {
		return "month resolution"
	}
	return "day resolution"
}

// Close releases backend resources held by the recognizers.
func (s *Scanner) Close() {
	s.closer()
}
