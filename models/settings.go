package models

import "time"

// AppSettings is the single active configuration row per user. The OpenAI key
// itself is never stored; only the presence flag survives a save.
type AppSettings struct {
	ID                string    `bson:"_id,omitempty" json:"id"`
	UserID            string    `bson:"user_id" json:"user_id"`
	UseFaiss          bool      `bson:"use_faiss" json:"use_faiss"`
	UseSupabase       bool      `bson:"use_supabase" json:"use_supabase"`
	OpenAIKeyProvided bool      `bson:"openai_key_provided" json:"openai_key_provided"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

// Documented defaults for a settings row that has never been saved.
const (
	DefaultUseFaiss    = true
	DefaultUseSupabase = true
)

// DefaultAppSettings returns the settings callers must assume when no row
// exists yet. Absence of a row is not an error.
func DefaultAppSettings(userID string) *AppSettings {
	return &AppSettings{
		UserID:      userID,
		UseFaiss:    DefaultUseFaiss,
		UseSupabase: DefaultUseSupabase,
	}
}

// SettingsUpdate is a partial update; nil fields are left untouched.
// OpenAIKey is write-only: providing a non-empty value flips
// openai_key_provided but the key is discarded after validation.
type SettingsUpdate struct {
	UseFaiss    *bool   `json:"use_faiss,omitempty"`
	UseSupabase *bool   `json:"use_supabase,omitempty"`
	OpenAIKey   *string `json:"openai_api_key,omitempty"`
}
