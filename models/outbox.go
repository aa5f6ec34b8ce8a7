package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"gorm.io/gorm"
)

// PubSubMessageRecord is the transactional-outbox row for order events.
// Rows are written in the same DB transaction as the document change and
// published to Pub/Sub afterwards by the outbox dispatcher.
type PubSubMessageRecord struct {
	ID                  int                 `gorm:"primary_key;index:idx_outbox_dispatch,priority:3;index:idx_outbox_reconcile,priority:3" json:"id"`
	BusinessId          string              `gorm:"size:64;not null;index;index:idx_outbox_reconcile,priority:1" json:"business_id"`
	TransactionDateTime time.Time           `gorm:"index;not null" json:"transaction_date_time"`
	ReferenceId         int                 `json:"reference_id"`
	ReferenceType       OrderReferenceType  `gorm:"type:enum('PO','CMR')" json:"reference_type"`
	Action              PubSubMessageAction `gorm:"type:enum('C','U','D','F')" json:"action"`
	OldObj              []byte              `gorm:"type:blob" json:"old_obj"`
	NewObj              []byte              `gorm:"type:blob" json:"new_obj"`
	IsProcessed         bool                `gorm:"index;not null;index:idx_outbox_reconcile,priority:2" json:"is_processed"`
	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	// Processing metadata (consumer/worker side)
	ProcessingStatus     string     `gorm:"size:20;index;not null;default:'PENDING'" json:"processing_status"` // PENDING|PROCESSING|SUCCEEDED|FAILED|DEAD
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt          *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record PubSubMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                  record.ID,
		BusinessId:          record.BusinessId,
		TransactionDateTime: record.TransactionDateTime,
		ReferenceId:         record.ReferenceId,
		ReferenceType:       string(record.ReferenceType),
		Action:              string(record.Action),
		OldObj:              record.OldObj,
		NewObj:              record.NewObj,
		CorrelationId:       record.CorrelationId,
	}
}

func GetOutboxStatus(ctx context.Context, referenceType OrderReferenceType, referenceId int) (*OutboxStatus, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var rec PubSubMessageRecord
	if err := db.WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Order("id DESC").
		First(&rec).Error; err != nil {
		return nil, err
	}

	processing := rec.ProcessingStatus
	if processing == "" {
		if rec.IsProcessed {
			processing = OutboxProcessStatusSucceeded
		} else {
			processing = OutboxProcessStatusPending
		}
	}

	var postingStatus OutboxPostingStatus
	switch processing {
	case OutboxProcessStatusProcessing:
		postingStatus = OutboxPostingStatusProcessing
	case OutboxProcessStatusFailed:
		postingStatus = OutboxPostingStatusFailed
	case OutboxProcessStatusDead:
		postingStatus = OutboxPostingStatusDead
	case OutboxProcessStatusSucceeded:
		postingStatus = OutboxPostingStatusSucceeded
	default:
		// If the row is already processed, always show SUCCEEDED (even if older rows have legacy values).
		if rec.IsProcessed {
			postingStatus = OutboxPostingStatusSucceeded
		} else {
			postingStatus = OutboxPostingStatusPending
		}
	}

	return &OutboxStatus{
		RecordId:             rec.ID,
		ReferenceType:        rec.ReferenceType,
		ReferenceId:          rec.ReferenceId,
		PublishStatus:        rec.PublishStatus,
		ProcessingStatus:     postingStatus,
		IsProcessed:          rec.IsProcessed,
		PublishAttempts:      rec.PublishAttempts,
		ProcessAttempts:      rec.ProcessAttempts,
		NextAttemptAt:        rec.NextAttemptAt,
		NextProcessAttemptAt: rec.NextProcessAttemptAt,
		LastPublishError:     rec.LastPublishError,
		LastProcessError:     rec.LastProcessError,
		CreatedAt:            rec.CreatedAt,
		PublishedAt:          rec.PublishedAt,
		ProcessedAt:          rec.ProcessedAt,
	}, nil
}

// ReprocessOutbox resets the latest unprocessed outbox row for a document so
// the dispatcher and consumer pick it up again.
func ReprocessOutbox(ctx context.Context, referenceType OrderReferenceType, referenceId int) (*OutboxStatus, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	now := time.Now().UTC()
	db := config.GetDB()

	res := db.WithContext(ctx).
		Model(&PubSubMessageRecord{}).
		Where("business_id = ? AND reference_type = ? AND reference_id = ? AND is_processed = 0", businessId, referenceType, referenceId).
		Updates(map[string]interface{}{
			"locked_at":               nil,
			"locked_by":               nil,
			"publish_status":          OutboxPublishStatusPending,
			"next_attempt_at":         nil,
			"processing_status":       OutboxProcessStatusPending,
			"next_process_attempt_at": &now,
			"last_process_error":      nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return GetOutboxStatus(ctx, referenceType, referenceId)
}
