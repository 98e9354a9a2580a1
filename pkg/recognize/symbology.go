package recognize

import (
	"fmt"
	"strings"
)

// Symbology is the barcode encoding standard a decoded value conforms to.
type Symbology int

const (
	EAN13 Symbology = iota
	EAN8
	UPCA
	UPCE
	Code39
	Code128
	QR
)

func (s Symbology) String() string {
	switch s {
	case EAN13:
		return "EAN13"
	case EAN8:
		return "EAN8"
	case UPCA:
		return "UPCA"
	case UPCE:
		return "UPCE"
	case Code39:
		return "CODE39"
	case Code128:
		return "CODE128"
	case QR:
		return "QR"
	default:
		return "Unknown"
	}
}

// ParseSymbology resolves a symbology name from configuration.
func ParseSymbology(name string) (Symbology, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "EAN13", "EAN-13":
		return EAN13, nil
	case "EAN8", "EAN-8":
		return EAN8, nil
	case "UPCA", "UPC-A":
		return UPCA, nil
	case "UPCE", "UPC-E":
		return UPCE, nil
	case "CODE39", "CODE-39":
		return Code39, nil
	case "CODE128", "CODE-128":
		return Code128, nil
	case "QR", "QRCODE", "QR-CODE":
		return QR, nil
	default:
		return 0, fmt.Errorf("unknown symbology %q", name)
	}
}

// ParseSymbologies resolves a list of symbology names, preserving order.
func ParseSymbologies(names []string) ([]Symbology, error) {
	syms := make([]Symbology, 0, len(names))
	for _, n := range names {
		s, err := ParseSymbology(n)
		if err != nil {
			return nil, err
		}
		syms = append(syms, s)
	}
	return syms, nil
}
