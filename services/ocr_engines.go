package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Engine is one OCR backend. Engines receive an already-preprocessed image
// path and return recognized plain text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// EasyOCREngine shells out to the easyocr CLI.
type EasyOCREngine struct{}

func (EasyOCREngine) Name() string { return "easyocr" }

func (EasyOCREngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "easyocr", "-l", "en", "--detail", "0", "-f", imagePath)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("easyocr failed: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.Join(lines, " "), nil
}

// TesseractEngine shells out to the tesseract CLI.
type TesseractEngine struct{}

func (TesseractEngine) Name() string { return "tesseract" }

func (TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// renderPDFPages rasterizes each page to a PNG via pdftoppm and returns the
// page image paths in order. The caller removes the returned directory.
func renderPDFPages(ctx context.Context, pdfPath string) ([]string, string, error) {
	dir := filepath.Join(os.TempDir(), "pdf-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "200", pdfPath, prefix)
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		return nil, "", fmt.Errorf("pdf rendering failed: %w", err)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(pages) == 0 {
		os.RemoveAll(dir)
		return nil, "", fmt.Errorf("pdf produced no pages: %v", err)
	}
	sort.Strings(pages)
	return pages, dir, nil
}
