package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"nutrilens/models"
)

// TextExtractor turns a stored upload into plain text. Empty output is a
// valid (if low-value) result, not an error.
type TextExtractor interface {
	Extract(ctx context.Context, filePath string, kind models.MealSource) (string, error)
}

// OCRService wraps two recognition engines with image preprocessing. The
// primary engine is configurable; any primary failure retries the secondary.
type OCRService struct {
	primary   Engine
	secondary Engine
}

// NewOCRService selects the primary engine by name ("easyocr" or
// "tesseract"); the other one becomes the fallback.
func NewOCRService(engine string) *OCRService {
	if strings.EqualFold(engine, "tesseract") {
		return &OCRService{primary: TesseractEngine{}, secondary: EasyOCREngine{}}
	}
	return &OCRService{primary: EasyOCREngine{}, secondary: TesseractEngine{}}
}

var _ TextExtractor = (*OCRService)(nil)

func (s *OCRService) Extract(ctx context.Context, filePath string, kind models.MealSource) (string, error) {
	switch kind {
	case models.SourceCSV:
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		return string(data), nil
	case models.SourceImage:
		return s.extractImage(ctx, filePath)
	case models.SourcePDF:
		return s.extractPDF(ctx, filePath)
	}
	return "", fmt.Errorf("%w: no extractor for source %q", ErrExtraction, kind)
}

func (s *OCRService) extractImage(ctx context.Context, filePath string) (string, error) {
	prePath, err := preprocessImage(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer os.Remove(prePath)
	return s.recognize(ctx, prePath)
}

func (s *OCRService) extractPDF(ctx context.Context, filePath string) (string, error) {
	pages, dir, err := renderPDFPages(ctx, filePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer os.RemoveAll(dir)

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		prePath, err := preprocessImage(page)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		text, err := s.recognize(ctx, prePath)
		os.Remove(prePath)
		if err != nil {
			return "", err
		}
		texts = append(texts, text)
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}

func (s *OCRService) recognize(ctx context.Context, imagePath string) (string, error) {
	text, err := s.primary.Recognize(ctx, imagePath)
	if err == nil {
		return strings.TrimSpace(text), nil
	}
	log.Printf("%s failed (%v), retrying with %s", s.primary.Name(), err, s.secondary.Name())

	text, err2 := s.secondary.Recognize(ctx, imagePath)
	if err2 != nil {
		return "", fmt.Errorf("%w: %s: %v; %s: %v", ErrExtraction, s.primary.Name(), err, s.secondary.Name(), err2)
	}
	return strings.TrimSpace(text), nil
}
