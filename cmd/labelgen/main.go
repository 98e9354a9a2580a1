// Command labelgen renders the product label fixtures scanned by the Disk
// hardware tier. Run it once before a Disk batch, or let the scanner
// generate the catalog lazily on first use.
package main

import (
	"os"
	"time"

	"freshkeeper/pkg/concurrency"
	"freshkeeper/pkg/config"
	opctx "freshkeeper/pkg/context"
	"freshkeeper/pkg/label"
	"freshkeeper/pkg/log"
	"freshkeeper/pkg/metrics"
)

func main() {
	cfg := config.NewConfig()
	rec := metrics.NewRecorder()
	oc := opctx.NewContext(cfg, rec)

	products := label.Catalog(time.Now())

	err := rec.Record("GenerateLabels", metrics.MLogic, func() error {
		return concurrency.ForEach(oc, products, func(_ int, p label.Product) error {
			path, err := label.WriteLabel(oc, p, cfg.LabelPath)
			if err != nil {
				return err
			}
			log.Info("Wrote %q label to %s", p.Name, path)
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to generate labels: %v", err)
	}

	if cfg.PrintMetrics {
		rec.PrintTree(os.Stdout, cfg.MaxDepth, cfg.MaxChildren)
	}
	log.Info("Generated %d labels in %s", len(products), cfg.LabelPath)
}
