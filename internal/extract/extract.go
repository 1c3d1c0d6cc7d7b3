// Package extract turns files on disk into page-delimited document text.
//
// Every page is written as a block that starts with the delimiter followed by
// " <n> ---", which the segmenter's default header pattern reads back as the
// page number:
//
//	--- PAGE 1 ---
//	first page text
//	--- PAGE 2 ---
//	second page text
package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultDelimiter matches the segmenter's default page delimiter.
const DefaultDelimiter = "--- PAGE"

// MaxTextFileSize bounds plain text input.
const MaxTextFileSize = 64 << 20

var (
	// ErrUnsupportedFormat is returned for file types other than text and PDF.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoText is returned when a PDF has no extractable text.
	ErrNoText = errors.New("no extractable text")
)

// Page is the text of one page.
type Page struct {
	Number int
	Text   string
}

// Supported reports whether File can read path, judged by extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

// File reads a .txt file as-is or extracts a .pdf into page blocks.
func File(path, delimiter string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF(path, delimiter)
	case ".txt":
		return Text(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Text reads a UTF-8 text file of at most MaxTextFileSize bytes.
func Text(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open text file: %w", err)
	}
	defer f.Close()
	return ReadText(f)
}

// ReadText reads UTF-8 text from r, at most MaxTextFileSize bytes.
func ReadText(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxTextFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	if len(data) > MaxTextFileSize {
		return "", fmt.Errorf("text too large (max %d bytes)", MaxTextFileSize)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return string(data), nil
}

// PDF extracts every page of the PDF at path and joins them with delimiter.
func PDF(path, delimiter string) (string, error) {
	pages, err := PDFPages(path)
	if err != nil {
		return "", err
	}
	return Join(pages, delimiter), nil
}

// PDFPages returns the plain text of each page that has any. Pages whose
// text cannot be decoded are skipped; a document with no text at all is
// ErrNoText.
func PDFPages(path string) (pages []Page, err error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("failed to parse PDF %s: %v", filepath.Base(path), r)
		}
	}()

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, textErr := page.GetPlainText(nil)
		if textErr != nil || strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoText, filepath.Base(path))
	}
	return pages, nil
}

// Join renders pages as delimited blocks. An empty delimiter uses
// DefaultDelimiter.
func Join(pages []Page, delimiter string) string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(delimiter)
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(p.Number))
		b.WriteString(" ---\n")
		b.WriteString(strings.TrimRight(p.Text, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
