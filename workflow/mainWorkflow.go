package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessMessage is the consumer entry point for order events. It serializes
// per business with an advisory lock, guards against redelivery with the
// idempotency table and applies the catalog effect of the event.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {

	if m.BusinessId == "" {
		return errors.New("message has no business id")
	}

	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		// Enforce strict per-business ordering across instances.
		if err := AcquireBusinessPostingLock(tx.WithContext(ctx), m.BusinessId); err != nil {
			return err
		}
		defer ReleaseBusinessPostingLock(tx.WithContext(ctx), m.BusinessId)

		if m.ReferenceType == "Reconcile" {
			// IMPORTANT: do not call tx.Commit()/tx.Rollback() inside db.Transaction.
			// Returning error triggers rollback; returning nil commits.
			return processPendingOrderEvents(ctx, tx.WithContext(ctx), logger, m.BusinessId)
		}

		// Worker-side posting gate: period locks must be enforced even if API
		// validation was bypassed.
		if err := EnforcePostingGate(ctx, m); err != nil {
			if markErr := markOutboxDropped(tx.WithContext(ctx), m, err); markErr != nil {
				return markErr
			}
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"field":          "PostingGate",
					"business_id":    m.BusinessId,
					"reference_type": m.ReferenceType,
					"reference_id":   m.ReferenceId,
					"message_id":     m.ID,
				}).Warn("posting gate blocked message: " + err.Error())
			}
			// Ack/drop permanently (do not retry); message would otherwise loop forever.
			return nil
		}

		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := BeginIdempotency(tx.WithContext(ctx), m.BusinessId, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return markOutboxProcessed(tx.WithContext(ctx), m)
		}

		if err := applyOrderEvent(tx.WithContext(ctx), logger, m); err != nil {
			_ = MarkIdempotencyFailed(tx.WithContext(ctx), m.BusinessId, handlerName, messageId, err)
			return err
		}
		if err := MarkIdempotencySucceeded(tx.WithContext(ctx), m.BusinessId, handlerName, messageId); err != nil {
			return err
		}
		return markOutboxProcessed(tx.WithContext(ctx), m)
	})
}

// applyOrderEvent folds the event into the supplier catalog. The catalog is
// append-only with respect to order statistics: confirmations fold line
// items in, while updates and deletions only invalidate caches and leave
// reconciliation to the rebuild flow.
func applyOrderEvent(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {

	refType, err := models.ParseOrderReferenceType(msg.ReferenceType)
	if err != nil {
		return err
	}

	switch refType {
	case models.OrderReferenceTypePurchaseOrder:
		return applyPurchaseOrderEvent(tx, logger, msg)
	case models.OrderReferenceTypeCmr:
		// consignment notes carry no catalog statistics
		return nil
	default:
		return fmt.Errorf("unknown reference type %q", msg.ReferenceType)
	}
}

func applyPurchaseOrderEvent(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {

	switch models.PubSubMessageAction(msg.Action) {
	case models.PubSubMessageActionConfirm:
		// Re-read the order: the payload may predate later edits and the
		// fold must see the committed state.
		var po models.PurchaseOrder
		err := tx.Preload("Details").
			Where("business_id = ? AND id = ?", msg.BusinessId, msg.ReferenceId).
			First(&po).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// deleted before the event was consumed
			logger.WithFields(logrus.Fields{
				"field":          "Workflow",
				"business_id":    msg.BusinessId,
				"reference_id":   msg.ReferenceId,
				"correlation_id": msg.CorrelationId,
			}).Warn("confirmed order no longer exists, skipping catalog fold")
			return nil
		}
		if err != nil {
			return err
		}
		return models.UpdateCatalogFromPurchaseOrder(tx, &po)

	case models.PubSubMessageActionUpdate, models.PubSubMessageActionDelete:
		// Stats already folded stay as-is until the next rebuild; only the
		// cached supplier listing must not serve stale rows.
		supplierId := supplierIdFromPayload(msg)
		if supplierId > 0 {
			return models.ClearSupplierCatalogCache(msg.BusinessId, supplierId)
		}
		return nil

	case models.PubSubMessageActionCreate:
		// drafts never reach the catalog
		return nil

	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

func supplierIdFromPayload(msg config.PubSubMessage) int {
	var envelope struct {
		SupplierId int `json:"supplier_id"`
	}
	payload := msg.NewObj
	if len(payload) == 0 {
		payload = msg.OldObj
	}
	if len(payload) == 0 {
		return 0
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return 0
	}
	return envelope.SupplierId
}

// processPendingOrderEvents drains unprocessed outbox rows for one business
// in enqueue order on the caller's transaction. Used by the reconcile flow
// after incidents.
func processPendingOrderEvents(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, businessId string) error {

	var records []models.PubSubMessageRecord
	err := tx.
		Where("business_id = ? AND is_processed = 0", businessId).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"field":       "Workflow",
		"business_id": businessId,
		"pending":     len(records),
	}).Info("reconcile: draining pending order events")

	for _, record := range records {
		m := models.ConvertToPubSubMessage(record)
		handlerName := m.ReferenceType
		messageId := strconv.Itoa(m.ID)

		skip, err := BeginIdempotency(tx, businessId, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			if err := markOutboxProcessed(tx, m); err != nil {
				return err
			}
			continue
		}
		if err := applyOrderEvent(tx, logger, m); err != nil {
			_ = MarkIdempotencyFailed(tx, businessId, handlerName, messageId, err)
			config.LogError(logger, "workflow", "processPendingOrderEvents",
				"processing pending event", record.ID, err)
			return err
		}
		if err := MarkIdempotencySucceeded(tx, businessId, handlerName, messageId); err != nil {
			return err
		}
		if err := markOutboxProcessed(tx, m); err != nil {
			return err
		}
	}
	return nil
}

func markOutboxProcessed(tx *gorm.DB, msg config.PubSubMessage) error {
	if msg.ID == 0 {
		return nil
	}
	now := time.Now().UTC()
	return tx.Model(&models.PubSubMessageRecord{}).
		Where("id = ? AND business_id = ?", msg.ID, msg.BusinessId).
		Updates(map[string]interface{}{
			"is_processed":       true,
			"processing_status":  models.OutboxProcessStatusSucceeded,
			"processed_at":       &now,
			"last_process_error": nil,
		}).Error
}

// markOutboxDropped records a permanent, non-retriable drop (posting gate).
func markOutboxDropped(tx *gorm.DB, msg config.PubSubMessage, dropErr error) error {
	if msg.ID == 0 {
		return nil
	}
	now := time.Now().UTC()
	errMsg := dropErr.Error()
	return tx.Model(&models.PubSubMessageRecord{}).
		Where("id = ? AND business_id = ?", msg.ID, msg.BusinessId).
		Updates(map[string]interface{}{
			"is_processed":       true,
			"processing_status":  models.OutboxProcessStatusDead,
			"processed_at":       &now,
			"last_process_error": &errMsg,
		}).Error
}
