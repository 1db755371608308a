package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// extractText pulls plain text out of an uploaded file. PDFs go through the
// pdf reader; anything else is treated as UTF-8 text.
func extractText(fileBytes []byte, filename string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return extractPDF(fileBytes)
	}
	if !utf8.Valid(fileBytes) {
		return "", fmt.Errorf("file %q is neither a PDF nor valid UTF-8 text", filename)
	}
	return string(fileBytes), nil
}

func extractPDF(fileBytes []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return b.String(), nil
}
