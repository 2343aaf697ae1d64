package services

import (
	"strings"
	"testing"
	"time"

	"rfp-intake-platform/models"
	"rfp-intake-platform/utils"

	"go.mongodb.org/mongo-driver/bson"
)

func TestStuckFilterCapsReconcileAttempts(t *testing.T) {
	deadline := time.Now()
	filter := stuckFilter(deadline)

	attempts, ok := filter["reconcile_attempts"].(bson.M)
	if !ok {
		t.Fatal("stuck filter has no reconcile_attempts bound")
	}
	not, ok := attempts["$not"].(bson.M)
	if !ok {
		t.Fatal("attempts bound must use $not so rows without the field match")
	}
	if not["$gte"] != maxReconcileAttempts {
		t.Fatalf("attempts cap = %v, want %d", not["$gte"], maxReconcileAttempts)
	}

	if _, ok := filter["file_path"]; !ok {
		t.Fatal("stuck filter must exclude finalized rows")
	}
	if filter["updated_at"].(bson.M)["$lt"] != deadline {
		t.Fatal("stuck filter must respect the deadline")
	}
}

func TestLoadContentPlainRow(t *testing.T) {
	store := NewRfpStore(nil)
	rfp := &models.Rfp{Content: "short extracted text"}

	got, err := store.LoadContent(rfp)
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if got != "short extracted text" {
		t.Fatalf("content = %q", got)
	}
}

func TestLoadContentCompressedRow(t *testing.T) {
	text := strings.Repeat("All responses must address each evaluation criterion. ", 200)
	compressed, err := utils.CompressText(text)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	store := NewRfpStore(nil)
	rfp := &models.Rfp{
		CompressedContent: compressed,
		Compression:       string(utils.CompressionBrotli),
	}

	got, err := store.LoadContent(rfp)
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if got != text {
		t.Fatal("decompressed content mismatch")
	}
}
