package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"tutor-backend/internal/models"
)

var ErrDocumentNotFound = errors.New("reference document not found")

type DocumentService struct{}

func NewDocumentService() *DocumentService {
	return &DocumentService{}
}

// Inspect checks that path is a readable PDF before it is uploaded.
func (s *DocumentService) Inspect(path string) (*models.DocumentInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return nil, err
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return nil, fmt.Errorf("unsupported reference document type: %s", ext)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("pdf has no pages: %s", path)
	}

	return &models.DocumentInfo{
		Path:      path,
		Pages:     pages,
		SizeBytes: stat.Size(),
	}, nil
}

// PageText returns the plain text of one 1-based page, for diagnostics.
func (s *DocumentService) PageText(path string, page int) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if page < 1 || page > reader.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", page, reader.NumPage())
	}

	p := reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	content, err := p.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return normalizeExtractedText(content), nil
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	var b strings.Builder

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			b.WriteString("\n")
			continue
		}
		emptyCount = 0
		b.WriteString(trimmed)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}
