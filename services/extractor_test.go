package services

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rfp-intake-platform/internal/config"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func writeTestDocx(t *testing.T, paragraphs []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	doc, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document part: %v", err)
	}

	body := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`

	if _, err := doc.Write([]byte(body)); err != nil {
		t.Fatalf("write document part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func newTestExtractor(timeoutSeconds int) *DocumentExtractor {
	return NewDocumentExtractor(&config.Config{ExtractTimeout: timeoutSeconds}, nil)
}

func TestExtractPlainText(t *testing.T) {
	path := writeTestFile(t, "notes.txt", "  requirement one\nrequirement two  \n")
	e := newTestExtractor(30)

	result, err := e.Extract(context.Background(), ExtractSource{Path: path, Filename: "notes.txt", MIME: MimeText})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.Content != "requirement one\nrequirement two" {
		t.Fatalf("content = %q", result.Content)
	}
	if result.Method != "plain" {
		t.Fatalf("method = %q", result.Method)
	}
}

func TestExtractDocx(t *testing.T) {
	path := writeTestDocx(t, []string{"Scope of Work", "Vendors must respond by June."})
	e := newTestExtractor(30)

	result, err := e.Extract(context.Background(), ExtractSource{Path: path, Filename: "test.docx", MIME: MimeDocx})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	want := "Scope of Work\nVendors must respond by June."
	if result.Content != want {
		t.Fatalf("content = %q, want %q", result.Content, want)
	}
	if result.Method != "docx-xml" {
		t.Fatalf("method = %q", result.Method)
	}
}

func TestExtractDocxWithoutDocumentPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := zip.NewWriter(f)
	w.Close()
	f.Close()

	e := newTestExtractor(30)
	if _, err := e.Extract(context.Background(), ExtractSource{Path: path, MIME: MimeDocx}); err == nil {
		t.Fatal("expected error for docx without document part")
	}
}

func TestExtractUnsupportedMIME(t *testing.T) {
	path := writeTestFile(t, "sheet.xlsx", "not really a sheet")
	e := newTestExtractor(30)

	_, err := e.Extract(context.Background(), ExtractSource{Path: path, MIME: "application/vnd.ms-excel"})

	var typeErr *UnsupportedTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("err = %v, want UnsupportedTypeError", err)
	}
}
