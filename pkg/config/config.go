package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"freshkeeper/pkg/log"
)

// SystemType identifies the platform the scanner runs on. It matters only
// when HWPeripheral is selected, because still-capture commands differ per
// platform, see GetCaptureCommand().
type SystemType string

const (
	SystemMac   SystemType = "Mac"
	SystemPi    SystemType = "Pi"
	SystemKiosk SystemType = "Kiosk"
)

// HardwareType selects the functional frame-source implementation.
type HardwareType string

const (
	HWCore       HardwareType = "Core"        // In-memory synthetic frames, no I/O.
	HWDisk       HardwareType = "Disk"        // Frames rendered from label PDFs on disk.
	HWPeripheral HardwareType = "Peripherals" // Physical camera via still-capture command.
)

// OCRBackend selects the text-recognition capability.
type OCRBackend string

const (
	OCRSidecar OCRBackend = "sidecar" // Ground-truth text carried by simulated frames.
	OCRGemini  OCRBackend = "gemini"  // Gemini vision model.
)

// Config holds all parameters for a scanner instance.
type Config struct {
	Runs         uint64
	HardwareType HardwareType
	System       SystemType
	OCR          OCRBackend

	LabelPath   string // Directory of product label PDFs for the Disk source.
	PicturePath string // Directory for camera stills taken by the Peripheral source.
	ResultsPath string

	DateDeadline  time.Duration // How long to keep scanning for an expiry date after a barcode hit.
	FrameInterval time.Duration // Cadence of simulated frame delivery.
	WatchdogBound time.Duration // Maximum age of an unreleased frame before the session is torn down.

	Symbologies string // Comma-separated symbology whitelist for the barcode decoder.

	GeminiAPIKey string
	GeminiModel  string

	Cores        int
	LogLevel     log.LogLevel
	PrintMetrics bool
	MaxDepth     int
	MaxChildren  int
}

// NewConfig creates a new Config by parsing command-line flags.
func NewConfig() *Config {
	log.Debug("Parsing command-line flags...")
	runs := flag.Uint64("runs", 1, "Number of scan sessions to execute.")
	hwType := flag.String("hw", "Core", "Frame source implementation (Core, Disk, Peripherals).")
	system := flag.String("system", "Mac", "Platform tag for peripheral capture (Mac, Pi, Kiosk).")
	ocr := flag.String("ocr", "sidecar", "Text recognition backend (sidecar, gemini).")
	labelPath := flag.String("labels", "output/labels/", "Path to product label PDFs for the Disk source.")
	picPath := flag.String("pics", "output/pics/", "Path for storing camera stills.")
	resultsPath := flag.String("results", "output/results/", "Path for storing scan results.")
	deadline := flag.Int("deadline", 3000, "Date-search deadline in ms after a barcode is found.")
	frameInterval := flag.Int("frame-interval", 100, "Simulated frame cadence in ms.")
	watchdog := flag.Int("watchdog", 10000, "Frame release watchdog bound in ms.")
	symbologies := flag.String("symbologies", "EAN13,EAN8,UPCA,UPCE,CODE39,CODE128,QR",
		"Comma-separated symbology whitelist for the barcode decoder.")
	geminiModel := flag.String("gemini-model", "gemini-2.5-pro", "Gemini model name for the gemini OCR backend.")
	cores := flag.Int("cores", 1, "Number of cores for parallel fixture generation.")
	logLevel := flag.String("log-level", "info", "Set log level (trace, debug, info, warn, error).")
	printMetrics := flag.Bool("print-metrics", false, "Whether to print the measurement tree after each run.")
	maxDepth := flag.Int("max-depth", 3, "Maximum depth of the printed measurement tree (-1 for all).")
	maxChildren := flag.Int("max-children", 25, "Maximum children per node in the printed tree (-1 for all).")

	flag.Parse()

	level := resolveLogLevel(*logLevel)
	log.SetLevel(level)

	config := &Config{
		Runs:         *runs,
		HardwareType: HardwareType(*hwType),
		System:       SystemType(*system),
		OCR:          OCRBackend(*ocr),

		LabelPath:   cleanAndCreateDirectory(*labelPath),
		PicturePath: cleanAndCreateDirectory(*picPath),
		ResultsPath: cleanAndCreateDirectory(*resultsPath),

		DateDeadline:  time.Duration(*deadline) * time.Millisecond,
		FrameInterval: time.Duration(*frameInterval) * time.Millisecond,
		WatchdogBound: time.Duration(*watchdog) * time.Millisecond,

		Symbologies: *symbologies,

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  *geminiModel,

		Cores:        *cores,
		LogLevel:     level,
		PrintMetrics: *printMetrics,
		MaxDepth:     *maxDepth,
		MaxChildren:  *maxChildren,
	}
	log.Debug("Config: %s", config)
	return config
}

// GetCaptureCommand returns the command to take a still picture for the
// configured platform. SystemType affects logic only if HWPeripheral is chosen.
func (c *Config) GetCaptureCommand(outputPath string) (string, []string) {
	switch c.System {
	case SystemPi, SystemKiosk:
		return "libcamera-still", []string{"-o", outputPath, "--timeout", "1"}
	case SystemMac:
		return "imagesnap", []string{outputPath}
	default:
		panic("Not implemented for system type: " + string(c.System))
	}
}

// SymbologyNames returns the configured symbology whitelist as a slice of names.
func (c *Config) SymbologyNames() []string {
	parts := strings.Split(c.Symbologies, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

// String returns a string representation of the Config instance
func (c *Config) String() string {
	return fmt.Sprintf("Config{Runs:%d HW:%s System:%s OCR:%s Labels:%s Pics:%s Results:%s "+
		"Deadline:%s FrameInterval:%s Watchdog:%s Symbologies:%s Cores:%d LogLevel:%d PrintMetrics:%t}",
		c.Runs, c.HardwareType, c.System, c.OCR, c.LabelPath, c.PicturePath, c.ResultsPath,
		c.DateDeadline, c.FrameInterval, c.WatchdogBound, c.Symbologies, c.Cores, c.LogLevel, c.PrintMetrics)
}

// --- Config Helpers ---

// cleanAndCreateDirectory ensures the specified directory exists by creating it
// if necessary. It returns the cleaned filepath.
func cleanAndCreateDirectory(path string) string {
	path = filepath.Clean(path)
	if err := os.MkdirAll(path, 0755); err != nil {
		log.Fatalf("Failed to create directory %s: %v", path, err)
	}

	return path
}

// resolveLogLevel maps one of "trace", "debug", "info", "warn" or "error"
// to its level. Defaults to info on invalid input.
func resolveLogLevel(logLevel string) log.LogLevel {
	switch logLevel {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "info":
		return log.LevelInfo
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		log.Info("Unknown log level '%s', defaulting to 'info'", logLevel)
		return log.LevelInfo
	}
}
