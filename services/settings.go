package services

import (
	"context"
	"time"

	"rfp-intake-platform/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsService manages the single active app_settings row for the
// installation. Writes are a single atomic upsert so concurrent savers
// cannot interleave a read-modify-write; last write wins on the toggles.
type SettingsService struct {
	collection *mongo.Collection
}

func NewSettingsService(collection *mongo.Collection) *SettingsService {
	return &SettingsService{collection: collection}
}

// Get returns the settings row, or nil without error when none exists yet.
// Callers treat absence as "use defaults".
func (s *SettingsService) Get(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := s.collection.FindOne(ctx, bson.M{}).Decode(&settings)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, &StoreError{Op: "find", Message: err.Error(), Err: err}
	}
	return &settings, nil
}

// Update merges a partial update into the active row, inserting it with the
// documented defaults on first save. The OpenAI key itself is discarded;
// only the presence flag is written. userID records who saved the row.
func (s *SettingsService) Update(ctx context.Context, userID string, update models.SettingsUpdate) (*models.AppSettings, error) {
	set, setOnInsert := settingsUpdateDoc(userID, update, time.Now())

	var settings models.AppSettings
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{},
		bson.M{"$set": set, "$setOnInsert": setOnInsert},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&settings)
	if err != nil {
		return nil, &StoreError{Op: "upsert", Message: err.Error(), Err: err}
	}
	return &settings, nil
}

// settingsUpdateDoc translates a partial update into the upsert documents.
// Fields the caller did not provide land in $setOnInsert with their defaults
// so an existing row keeps its values and a fresh row gets the documented
// ones. The raw key value never appears in either document.
func settingsUpdateDoc(userID string, update models.SettingsUpdate, now time.Time) (bson.M, bson.M) {
	set := bson.M{
		"updated_at": now,
	}
	setOnInsert := bson.M{
		"_id":        uuid.NewString(),
		"user_id":    userID,
		"created_at": now,
	}

	if update.UseFaiss != nil {
		set["use_faiss"] = *update.UseFaiss
	} else {
		setOnInsert["use_faiss"] = models.DefaultUseFaiss
	}

	if update.UseSupabase != nil {
		set["use_supabase"] = *update.UseSupabase
	} else {
		setOnInsert["use_supabase"] = models.DefaultUseSupabase
	}

	if update.OpenAIKey != nil && *update.OpenAIKey != "" {
		set["openai_key_provided"] = true
	} else {
		setOnInsert["openai_key_provided"] = false
	}

	return set, setOnInsert
}
