// Package extract turns raw file bytes into plaintext or tabular data
// keyed by MIME type. Binary document formats go through docconv; images
// degrade to a filename placeholder; everything else is treated as text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
)

// MIME types routed through docconv.
const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDoc  = "application/msword"
)

// Text extracts plaintext from raw according to its MIME type.
//
// PDFs and Word documents are converted via docconv. Images carry no
// extractable text, so the file name is returned as a searchable
// placeholder. Any other type is decoded as UTF-8 with invalid byte
// sequences replaced rather than rejected.
func Text(raw []byte, mimeType, fileName string) (string, error) {
	switch {
	case strings.Contains(mimeType, mimePDF):
		return convert(raw, mimePDF)
	case mimeType == mimeDocx || mimeType == mimeDoc:
		return convert(raw, mimeType)
	case strings.HasPrefix(mimeType, "image"):
		return fileName, nil
	default:
		return decodeLossy(raw), nil
	}
}

func convert(raw []byte, mimeType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(raw), mimeType, true)
	if err != nil {
		return "", fmt.Errorf("%w: convert %s: %v", domain.ErrExtraction, mimeType, err)
	}
	return res.Body, nil
}

// decodeLossy interprets raw as UTF-8, replacing invalid sequences with
// the replacement rune instead of failing on partially binary input.
func decodeLossy(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}
