package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BatchStatus represents the current state of a batch ledger.
// A batch is terminal once it leaves StatusProcessing and never reverts.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchComplete   BatchStatus = "complete"
	BatchTimeout    BatchStatus = "timeout"
	BatchEmpty      BatchStatus = "empty"
)

// Batch is the persistent per-batch progress ledger. It is created once by
// the fan-out dispatcher, mutated by stage workers, the completion tracker
// and the reaper, and never deleted.
type Batch struct {
	ID       string `bson:"_id" json:"id"`
	OwnerID  string `bson:"owner_id" json:"owner_id"`
	SourceID string `bson:"source_id,omitempty" json:"source_id,omitempty"`

	TotalJobs        int      `bson:"total_jobs" json:"total_jobs"`
	CompletedJobs    int      `bson:"completed_jobs" json:"completed_jobs"`
	CompletedItemIDs []string `bson:"completed_item_ids" json:"completed_item_ids"`
	FailedItemIDs    []string `bson:"failed_item_ids,omitempty" json:"failed_item_ids,omitempty"`

	Status                BatchStatus         `bson:"status" json:"status"`
	NotificationSent      bool                `bson:"notification_sent" json:"notification_sent"`
	NotificationRequestID *primitive.ObjectID `bson:"notification_request_id,omitempty" json:"notification_request_id,omitempty"`

	// ItemStages maps itemID to its most recently claimed stage; StageHistory
	// keeps the ordered list of stages each item passed through.
	ItemStages   map[string]Stage   `bson:"item_stages,omitempty" json:"item_stages,omitempty"`
	StageHistory map[string][]Stage `bson:"stage_history,omitempty" json:"stage_history,omitempty"`

	Note        string     `bson:"note,omitempty" json:"note,omitempty"`
	StartedAt   time.Time  `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Terminal reports whether the ledger reached a final status
func (b *Batch) Terminal() bool {
	return b.Status != BatchProcessing
}

// RawItem is the ingestion-boundary payload for a single scraped listing
type RawItem struct {
	ItemID      string `json:"item_id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description"`
}

// Item is the per-item persistent document. Created at fan-out, mutated by
// each stage worker via merge writes, never deleted by the pipeline.
type Item struct {
	ID      string `bson:"_id" json:"id"`
	OwnerID string `bson:"owner_id" json:"owner_id"`
	BatchID string `bson:"batch_id,omitempty" json:"batch_id,omitempty"`

	Title       string `bson:"title" json:"title"`
	Company     string `bson:"company" json:"company"`
	Location    string `bson:"location,omitempty" json:"location,omitempty"`
	URL         string `bson:"url,omitempty" json:"url,omitempty"`
	Description string `bson:"description" json:"description"`

	Stage Stage `bson:"stage" json:"stage"`

	BasicsScore       *int     `bson:"basics_score,omitempty" json:"basics_score,omitempty"`
	BasicsReasons     []string `bson:"basics_reasons,omitempty" json:"basics_reasons,omitempty"`
	PreferenceScore   *int     `bson:"preference_score,omitempty" json:"preference_score,omitempty"`
	AdjustedScore     *int     `bson:"adjusted_score,omitempty" json:"adjusted_score,omitempty"`
	PreferenceReasons []string `bson:"preference_reasons,omitempty" json:"preference_reasons,omitempty"`
	Summary           string   `bson:"summary,omitempty" json:"summary,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// WorkItem is the message published to a stage queue: process item I of
// batch B for owner O at the receiving stage. BatchID is empty for items
// dispatched outside a batch.
type WorkItem struct {
	OwnerID    string    `json:"owner_id"`
	ItemID     string    `json:"item_id"`
	BatchID    string    `json:"batch_id,omitempty"`
	SearchID   string    `json:"search_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NotificationStatus tracks delivery of a notification intent. The pipeline
// only ever creates pending intents; the sender owns the rest.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationSkipped NotificationStatus = "skipped"
	NotificationError   NotificationStatus = "error"
)

// NotificationIntent is the persisted request for exactly one outbound
// notification per batch
type NotificationIntent struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	OwnerID string             `bson:"owner_id" json:"owner_id"`
	BatchID string             `bson:"batch_id" json:"batch_id"`

	To      string             `bson:"to" json:"to"`
	Subject string             `bson:"subject" json:"subject"`
	Body    string             `bson:"body" json:"body"`
	Status  NotificationStatus `bson:"status" json:"status"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	SentAt    *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
}

// OwnerContact holds the notification address for an owner
type OwnerContact struct {
	OwnerID string `bson:"_id" json:"owner_id"`
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
}

// Token roles
const (
	RoleAdmin  = "admin"
	RoleIngest = "ingest"
)

// APIToken represents a bearer token for the ingestion API
type APIToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TokenHash string             `bson:"token_hash" json:"-"`
	Name      string             `bson:"name" json:"name"`
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	LastUsed  time.Time          `bson:"last_used,omitempty" json:"last_used,omitempty"`
	Revoked   bool               `bson:"revoked" json:"revoked"`
}
