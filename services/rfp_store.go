package services

import (
	"context"
	"time"

	"rfp-intake-platform/models"
	"rfp-intake-platform/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Content above this size is stored brotli-compressed.
const compressThreshold = 4096

// Rows the reconciler re-drove this many times stop matching FindStuck and
// stay failed for good.
const maxReconcileAttempts = 3

// RfpStore is the Mongo-backed document record store for RFP rows. Row ids
// are assigned client-side (uuid) so file paths can reference them before
// the insert round-trips.
type RfpStore struct {
	collection *mongo.Collection
}

func NewRfpStore(collection *mongo.Collection) *RfpStore {
	return &RfpStore{collection: collection}
}

// Insert creates the initial row for an upload: title, file type and owner,
// with content, file_path and faiss_id all unset. Returns the generated id.
func (s *RfpStore) Insert(ctx context.Context, rfp *models.Rfp) (string, error) {
	if rfp.ID == "" {
		rfp.ID = uuid.NewString()
	}
	now := time.Now()
	rfp.Status = models.StatusPending
	rfp.CreatedAt = now
	rfp.UpdatedAt = now

	if _, err := s.collection.InsertOne(ctx, rfp); err != nil {
		return "", &StoreError{Op: "insert", Message: err.Error(), Err: err}
	}
	return rfp.ID, nil
}

// Finalize writes content, file_path and faiss_id in one update so the row
// never carries one without the others. Large content is stored compressed.
func (s *RfpStore) Finalize(ctx context.Context, id string, fin models.RfpFinalization) error {
	now := time.Now()
	set := bson.M{
		"file_path":    fin.FilePath,
		"faiss_id":     fin.FaissID,
		"status":       models.StatusCompleted,
		"updated_at":   now,
		"processed_at": now,
	}
	unset := bson.M{"error_message": ""}

	if len(fin.Content) >= compressThreshold {
		compressed, err := utils.CompressText(fin.Content)
		if err != nil {
			return &StoreError{Op: "finalize", Message: err.Error(), Err: err}
		}
		set["compressed_content"] = compressed
		set["compression"] = utils.CompressionBrotli
		unset["content"] = ""
	} else {
		set["content"] = fin.Content
		unset["compressed_content"] = ""
		unset["compression"] = ""
	}

	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$unset": unset},
	)
	if err != nil {
		return &StoreError{Op: "finalize", Message: err.Error(), Err: err}
	}
	if res.MatchedCount == 0 {
		return &StoreError{Op: "finalize", Message: "rfp row not found: " + id}
	}
	return nil
}

// MarkProcessing flags the row while extraction runs.
func (s *RfpStore) MarkProcessing(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.StatusProcessing, "")
}

// MarkFailed records the terminal error for this attempt. The row keeps its
// content-less sub-state; the reconciler picks it up later.
func (s *RfpStore) MarkFailed(ctx context.Context, id, message string) error {
	return s.setStatus(ctx, id, models.StatusFailed, message)
}

func (s *RfpStore) setStatus(ctx context.Context, id, status, errMsg string) error {
	set := bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errMsg != "" {
		set["error_message"] = errMsg
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return &StoreError{Op: "update", Message: err.Error(), Err: err}
	}
	return nil
}

// Get fetches a row scoped to its owner.
func (s *RfpStore) Get(ctx context.Context, id, userID string) (*models.Rfp, error) {
	var rfp models.Rfp
	err := s.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&rfp)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, &StoreError{Op: "find", Message: err.Error(), Err: err}
	}
	return &rfp, nil
}

// List returns the owner's rows newest first.
func (s *RfpStore) List(ctx context.Context, userID string, page, limit int) ([]models.Rfp, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	skip := int64((page - 1) * limit)
	cursor, err := s.collection.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.M{"created_at": -1}).
			SetSkip(skip).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, 0, &StoreError{Op: "find", Message: err.Error(), Err: err}
	}
	defer cursor.Close(ctx)

	var rfps []models.Rfp
	if err := cursor.All(ctx, &rfps); err != nil {
		return nil, 0, &StoreError{Op: "decode", Message: err.Error(), Err: err}
	}

	total, err := s.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, 0, &StoreError{Op: "count", Message: err.Error(), Err: err}
	}
	return rfps, total, nil
}

// FindStuck returns rows that entered processing (or failed there) and still
// have no content past the deadline. Used by the finalization reconciler.
func (s *RfpStore) FindStuck(ctx context.Context, before time.Time, limit int) ([]models.Rfp, error) {
	cursor, err := s.collection.Find(ctx,
		stuckFilter(before),
		options.Find().
			SetSort(bson.M{"updated_at": 1}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, &StoreError{Op: "find", Message: err.Error(), Err: err}
	}
	defer cursor.Close(ctx)

	var rfps []models.Rfp
	if err := cursor.All(ctx, &rfps); err != nil {
		return nil, &StoreError{Op: "decode", Message: err.Error(), Err: err}
	}
	return rfps, nil
}

// stuckFilter matches rows that entered processing (or failed there), still
// have no content past the deadline, and have reconciler attempts left.
// $not rather than $lt so rows without the counter field still match.
func stuckFilter(before time.Time) bson.M {
	return bson.M{
		"status":             bson.M{"$in": []string{models.StatusProcessing, models.StatusFailed}},
		"file_path":          bson.M{"$exists": false},
		"updated_at":         bson.M{"$lt": before},
		"reconcile_attempts": bson.M{"$not": bson.M{"$gte": maxReconcileAttempts}},
	}
}

// IncrementReconcileAttempts counts one reconciler retry against the row.
func (s *RfpStore) IncrementReconcileAttempts(ctx context.Context, id string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"reconcile_attempts": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return &StoreError{Op: "update", Message: err.Error(), Err: err}
	}
	return nil
}

// LoadContent returns the row's extracted text, decompressing when the
// finalizer stored it compressed.
func (s *RfpStore) LoadContent(rfp *models.Rfp) (string, error) {
	if len(rfp.CompressedContent) == 0 {
		return rfp.Content, nil
	}
	return utils.DecompressText(rfp.CompressedContent, utils.CompressionAlgorithm(rfp.Compression))
}
