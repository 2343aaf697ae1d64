package models

import (
	"time"
)

// Rfp represents one uploaded request-for-proposal document. The row is
// inserted at upload time with content/file_path/faiss_id unset; finalization
// sets all three together once extraction produces usable text.
type Rfp struct {
	ID                string     `bson:"_id" json:"id"`
	Title             string     `bson:"title" json:"title"`
	Agency            string     `bson:"agency,omitempty" json:"agency,omitempty"`
	FileType          string     `bson:"file_type" json:"file_type"`
	Content           string     `bson:"content,omitempty" json:"content,omitempty"`
	CompressedContent []byte     `bson:"compressed_content,omitempty" json:"-"`
	Compression       string     `bson:"compression,omitempty" json:"-"`
	FilePath          string     `bson:"file_path,omitempty" json:"file_path,omitempty"`
	FaissID           string     `bson:"faiss_id,omitempty" json:"faiss_id,omitempty"`
	UserID            string     `bson:"user_id" json:"user_id"`
	Size              int64      `bson:"size" json:"size"`
	OriginalName      string     `bson:"original_name" json:"original_name"`
	Status            string     `bson:"status" json:"status"` // pending, processing, completed, failed
	ErrorMessage      string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ReconcileAttempts int        `bson:"reconcile_attempts,omitempty" json:"-"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
	ProcessedAt       *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// RfpFinalization carries the fields written by the finalization step.
// Content and FilePath are always set together.
type RfpFinalization struct {
	Content  string
	FilePath string
	FaissID  string
}

// RFP processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// AnalysisResult is produced by the downstream analysis engine. The intake
// workflow never writes these rows; they are modeled so indexes and the chat
// and report surfaces share one schema.
type AnalysisResult struct {
	ID               string                 `bson:"_id,omitempty" json:"id"`
	RfpID            string                 `bson:"rfp_id" json:"rfp_id"`
	CompanyProfileID string                 `bson:"company_profile_id,omitempty" json:"company_profile_id,omitempty"`
	EligibilityScore float64                `bson:"eligibility_score" json:"eligibility_score"`
	Checklist        map[string]interface{} `bson:"checklist,omitempty" json:"checklist,omitempty"`
	RiskFlags        map[string]interface{} `bson:"risk_flags,omitempty" json:"risk_flags,omitempty"`
	Verdict          string                 `bson:"verdict,omitempty" json:"verdict,omitempty"`
	Timestamp        time.Time              `bson:"timestamp" json:"timestamp"`
}

// CompanyProfile holds the owner's capability data used by analysis.
type CompanyProfile struct {
	ID               string                 `bson:"_id,omitempty" json:"id"`
	Name             string                 `bson:"name" json:"name"`
	UserID           string                 `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Certifications   map[string]interface{} `bson:"certifications,omitempty" json:"certifications,omitempty"`
	Capabilities     map[string]interface{} `bson:"capabilities,omitempty" json:"capabilities,omitempty"`
	Locations        map[string]interface{} `bson:"locations,omitempty" json:"locations,omitempty"`
	ComplianceStatus map[string]interface{} `bson:"compliance_status,omitempty" json:"compliance_status,omitempty"`
	CreatedAt        time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time              `bson:"updated_at" json:"updated_at"`
}

// QALog records a single question/answer exchange against an RFP.
type QALog struct {
	ID             string                 `bson:"_id,omitempty" json:"id"`
	RfpID          string                 `bson:"rfp_id" json:"rfp_id"`
	Query          string                 `bson:"query" json:"query"`
	Response       string                 `bson:"response" json:"response"`
	Sources        map[string]interface{} `bson:"sources,omitempty" json:"sources,omitempty"`
	VectorUsed     bool                   `bson:"vector_used" json:"vector_used"`
	DocumentSource string                 `bson:"document_source,omitempty" json:"document_source,omitempty"`
	Timestamp      time.Time              `bson:"timestamp" json:"timestamp"`
}

// UploadResponse is returned by the upload endpoint. Next carries the
// navigation target the client should move to once the RFP is ready.
type UploadResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	TaskID   string `json:"task_id,omitempty"`
	Next     string `json:"next,omitempty"`
	Message  string `json:"message"`
}
