package services

import (
	"testing"
	"time"

	"rfp-intake-platform/models"
)

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestSettingsUpdateDocDefaults(t *testing.T) {
	now := time.Now()
	set, setOnInsert := settingsUpdateDoc("user-1", models.SettingsUpdate{}, now)

	// Nothing provided: only the timestamp is written, defaults land on
	// insert so an existing row keeps its values.
	if len(set) != 1 {
		t.Fatalf("set = %v, want only updated_at", set)
	}
	if setOnInsert["use_faiss"] != models.DefaultUseFaiss {
		t.Fatalf("use_faiss default = %v", setOnInsert["use_faiss"])
	}
	if setOnInsert["use_supabase"] != models.DefaultUseSupabase {
		t.Fatalf("use_supabase default = %v", setOnInsert["use_supabase"])
	}
	if setOnInsert["openai_key_provided"] != false {
		t.Fatalf("openai_key_provided default = %v", setOnInsert["openai_key_provided"])
	}
	if setOnInsert["user_id"] != "user-1" {
		t.Fatalf("user_id = %v", setOnInsert["user_id"])
	}
}

func TestSettingsUpdateDocPartialUpdate(t *testing.T) {
	set, setOnInsert := settingsUpdateDoc("user-1", models.SettingsUpdate{
		UseFaiss: boolPtr(false),
	}, time.Now())

	if set["use_faiss"] != false {
		t.Fatalf("set use_faiss = %v, want false", set["use_faiss"])
	}
	if _, ok := set["use_supabase"]; ok {
		t.Fatal("use_supabase must not be set when not provided")
	}
	if _, ok := setOnInsert["use_faiss"]; ok {
		t.Fatal("use_faiss must not appear in both documents")
	}
	if setOnInsert["use_supabase"] != models.DefaultUseSupabase {
		t.Fatalf("use_supabase default missing on insert")
	}
}

func TestSettingsUpdateDocKeyNeverStored(t *testing.T) {
	set, setOnInsert := settingsUpdateDoc("user-1", models.SettingsUpdate{
		OpenAIKey: strPtr("sk-test-secret-value"),
	}, time.Now())

	if set["openai_key_provided"] != true {
		t.Fatalf("openai_key_provided = %v, want true", set["openai_key_provided"])
	}
	for _, doc := range []map[string]interface{}{set, setOnInsert} {
		for k, v := range doc {
			if s, ok := v.(string); ok && s == "sk-test-secret-value" {
				t.Fatalf("raw key leaked into %q", k)
			}
		}
	}
}

func TestSettingsUpdateDocEmptyKeyDoesNotFlip(t *testing.T) {
	set, _ := settingsUpdateDoc("user-1", models.SettingsUpdate{
		OpenAIKey: strPtr(""),
	}, time.Now())

	if _, ok := set["openai_key_provided"]; ok {
		t.Fatal("empty key must not flip the presence flag")
	}
}
