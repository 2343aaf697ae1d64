package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rfp-intake-platform/internal/config"

	"github.com/ledongthuc/pdf"
)

// Accepted upload MIME types
const (
	MimePDF  = "application/pdf"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// ExtractSource identifies the stored upload an extractor should consume.
type ExtractSource struct {
	Path     string
	Filename string
	MIME     string
}

// ExtractionResult holds extracted plain text plus processing metadata.
type ExtractionResult struct {
	Content        string
	Pages          int
	Method         string
	ProcessingTime time.Duration
}

// ContentExtractor is the seam the upload workflow processes files through.
// Real implementations parse the stored file; tests substitute a
// deterministic fake. Implementations must honor ctx cancellation.
type ContentExtractor interface {
	Extract(ctx context.Context, src ExtractSource) (*ExtractionResult, error)
}

// DocumentExtractor routes a source to the parser for its MIME type, bounds
// each attempt with a timeout, and optionally falls back to the remote
// extraction service when local parsing fails.
type DocumentExtractor struct {
	config  *config.Config
	remote  *ExtractionClient
	timeout time.Duration
}

func NewDocumentExtractor(cfg *config.Config, remote *ExtractionClient) *DocumentExtractor {
	timeout := time.Duration(cfg.ExtractTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &DocumentExtractor{
		config:  cfg,
		remote:  remote,
		timeout: timeout,
	}
}

func (e *DocumentExtractor) Extract(ctx context.Context, src ExtractSource) (*ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()

	type outcome struct {
		result *ExtractionResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := e.extractLocal(src)
		if err != nil && e.remote != nil && e.config.ExtractServiceEnabled {
			result, err = e.remote.Extract(ctx, src)
		}
		done <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrProcessingTimeout
		}
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		out.result.ProcessingTime = time.Since(start)
		return out.result, nil
	}
}

func (e *DocumentExtractor) extractLocal(src ExtractSource) (*ExtractionResult, error) {
	switch src.MIME {
	case MimePDF:
		return extractPDF(src.Path)
	case MimeDocx:
		return extractDocx(src.Path)
	case MimeText:
		return extractPlainText(src.Path)
	default:
		return nil, &UnsupportedTypeError{FileType: src.MIME}
	}
}

// extractPDF pulls plain text out of every readable page.
func extractPDF(path string) (*ExtractionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf file: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return nil, fmt.Errorf("no extractable text in pdf (%d pages)", pages)
	}

	return &ExtractionResult{Content: extracted, Pages: pages, Method: "go-pdf"}, nil
}

// extractDocx reads word/document.xml out of the OOXML container and keeps
// the text runs, one line per paragraph.
func extractDocx(path string) (*ExtractionResult, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx container: %w", err)
	}
	defer archive.Close()

	var document io.ReadCloser
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open document part: %w", err)
			}
			break
		}
	}
	if document == nil {
		return nil, fmt.Errorf("docx container has no word/document.xml")
	}
	defer document.Close()

	var textBuilder strings.Builder
	decoder := xml.NewDecoder(document)
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				textBuilder.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				textBuilder.Write(t)
			}
		}
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return nil, fmt.Errorf("no extractable text in docx")
	}

	return &ExtractionResult{Content: extracted, Method: "docx-xml"}, nil
}

func extractPlainText(path string) (*ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return &ExtractionResult{Content: strings.TrimSpace(string(data)), Method: "plain"}, nil
}
