package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressTextRoundTrip(t *testing.T) {
	text := strings.Repeat("The vendor shall provide all deliverables on schedule. ", 200)

	compressed, err := CompressText(text)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) >= len(text) {
		t.Fatalf("compressed %d bytes, original %d", len(compressed), len(text))
	}

	restored, err := DecompressText(compressed, CompressionBrotli)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if restored != text {
		t.Fatal("round trip mismatch")
	}
}

func TestDecompressTextDefaultsToBrotli(t *testing.T) {
	compressed, err := CompressText("stored before the algorithm field existed")
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	restored, err := DecompressText(compressed, "")
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if restored != "stored before the algorithm field existed" {
		t.Fatalf("restored = %q", restored)
	}
}

func TestCompressDataAlgorithms(t *testing.T) {
	data := bytes.Repeat([]byte("abc123 "), 500)

	for _, alg := range []CompressionAlgorithm{CompressionNone, CompressionGzip, CompressionBrotli} {
		compressed, err := CompressData(data, alg)
		if err != nil {
			t.Fatalf("%s compress: %v", alg, err)
		}
		restored, err := DecompressData(compressed, alg)
		if err != nil {
			t.Fatalf("%s decompress: %v", alg, err)
		}
		if !bytes.Equal(restored, data) {
			t.Fatalf("%s round trip mismatch", alg)
		}
	}
}

func TestCompressDataUnknownAlgorithm(t *testing.T) {
	if _, err := CompressData([]byte("x"), "zstd"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}
