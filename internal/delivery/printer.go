package delivery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	"photobooth-kiosk/internal/metrics"
	"photobooth-kiosk/internal/models"
)

// Print sheet is a portrait 4x6 inch page.
const (
	SheetWidthInches  = 4
	SheetHeightInches = 6
	DefaultDPI        = 300
)

type Printer interface {
	Print(ctx context.Context, img image.Image, copies int) error
	ListPrinters(ctx context.Context) ([]string, error)
}

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RenderSheet scales img to fit a white 4x6 page at dpi, centered.
func RenderSheet(img image.Image, dpi int) image.Image {
	return sheetContext(img, dpi).Image()
}

func sheetContext(img image.Image, dpi int) *gg.Context {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	w, h := SheetWidthInches*dpi, SheetHeightInches*dpi

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	b := img.Bounds()
	if b.Empty() {
		return dc
	}
	scale := min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	dw := max(1, int(float64(b.Dx())*scale+0.5))
	dh := max(1, int(float64(b.Dy())*scale+0.5))

	fitted := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(fitted, fitted.Bounds(), img, b, xdraw.Src, nil)
	dc.DrawImage(fitted, (w-dw)/2, (h-dh)/2)
	return dc
}

// LPPrinter submits sheets to CUPS with lp. Submission is fire-and-forget;
// the outcome is only logged.
type LPPrinter struct {
	config  *PrinterConfigStore
	dpi     int
	tempDir string
	run     CommandRunner
	metrics *metrics.Metrics

	jobs sync.WaitGroup
}

func NewLPPrinter(config *PrinterConfigStore, dpi int, m *metrics.Metrics) *LPPrinter {
	return &LPPrinter{
		config:  config,
		dpi:     dpi,
		run:     execRunner,
		metrics: m,
	}
}

// WithRunner replaces the command runner.
func (p *LPPrinter) WithRunner(run CommandRunner) *LPPrinter {
	p.run = run
	return p
}

func (p *LPPrinter) Print(ctx context.Context, img image.Image, copies int) error {
	if img == nil {
		return models.NewValidationError("image", "nothing to print")
	}
	if copies < 1 {
		copies = 1
	}
	cfg, err := p.config.Load()
	if err != nil {
		return err
	}
	if cfg.PrinterName == "" {
		return models.NewValidationError("printer", "no printer configured")
	}

	file, err := os.CreateTemp(p.tempDir, "print-*.png")
	if err != nil {
		return fmt.Errorf("failed to create print file: %w", err)
	}
	path := file.Name()
	file.Close()

	if err := sheetContext(img, p.dpi).SavePNG(path); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write print file: %w", err)
	}

	p.jobs.Add(1)
	go func() {
		defer p.jobs.Done()
		defer os.Remove(path)

		jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		out, err := p.run(jobCtx, "lp", "-d", cfg.PrinterName, "-n", strconv.Itoa(copies), path)
		if err != nil {
			p.metrics.PrintJob("failed")
			log.Error().Err(err).Str("printer", cfg.PrinterName).Str("output", strings.TrimSpace(string(out))).Msg("print job failed")
			return
		}
		p.metrics.PrintJob("submitted")
		log.Info().Str("printer", cfg.PrinterName).Int("copies", copies).Str("output", strings.TrimSpace(string(out))).Msg("print job submitted")
	}()
	return nil
}

// Wait blocks until submitted jobs have finished.
func (p *LPPrinter) Wait() {
	p.jobs.Wait()
}

// ListPrinters returns the CUPS destinations known to the host.
func (p *LPPrinter) ListPrinters(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, "lpstat", "-e")
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w: %s", err, strings.TrimSpace(string(out)))
	}
	var printers []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			printers = append(printers, name)
		}
	}
	return printers, scanner.Err()
}
