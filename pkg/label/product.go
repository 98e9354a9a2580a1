// Package label generates the printed product labels the simulated camera
// tiers scan. Each label carries a retail symbol and, for most products, a
// best-before line in one of the date spellings seen on real packaging.
package label

import (
	"fmt"
	"time"

	"freshkeeper/pkg/recognize"
)

// Product describes one label to generate. DateLine is the printed
// best-before text, already formatted; it is empty for products without a
// printed date (loose produce, salt).
type Product struct {
	Name      string
	Value     string
	Symbology recognize.Symbology
	DateLine  string
}

// FileName returns the label's PDF name inside the label directory.
func (p Product) FileName() string {
	return fmt.Sprintf("label_%s_%s.pdf", p.Symbology, p.Value)
}

// Catalog returns the fixture products with best-before dates computed
// relative to now, so generated labels always validate against the
// acceptance window. The date spellings deliberately vary: dotted, dashed
// and slashed full dates, a two-digit year, a month-year line, and one
// product with no date at all.
func Catalog(now time.Time) []Product {
	return []Product{
		{
			Name:      "H-Milch 3,5%",
			Value:     "4006381333931",
			Symbology: recognize.EAN13,
			DateLine:  "Mindestens haltbar bis " + now.AddDate(0, 3, 0).Format("02.01.2006"),
		},
		{
			Name:      "Butterkekse",
			Value:     "96385074",
			Symbology: recognize.EAN8,
			DateLine:  "MHD: " + now.AddDate(0, 9, 0).Format("02-01-2006"),
		},
		{
			Name:      "Dosentomaten",
			Value:     "LOT 4711 TOMATO",
			Symbology: recognize.Code128,
			DateLine:  "best before " + now.AddDate(2, 0, 0).Format("02/01/06"),
		},
		{
			Name:      "Joghurt Natur",
			Value:     "4388840123452",
			Symbology: recognize.EAN13,
			DateLine:  "zu verbrauchen bis " + now.AddDate(0, 0, 12).Format("02.01.2006"),
		},
		{
			Name:      "Kaffee gemahlen",
			Value:     "COFFEE-0815",
			Symbology: recognize.QR,
			DateLine:  "Mindestens haltbar bis Ende " + now.AddDate(1, 6, 0).Format("01.2006"),
		},
		{
			Name:      "Meersalz",
			Value:     "4000540001235",
			Symbology: recognize.EAN13,
			DateLine:  "",
		},
	}
}
