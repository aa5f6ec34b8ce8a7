package main

import (
	"context"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/sirupsen/logrus"
)

func ensureBusinessContext(ctx context.Context, businessId string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if businessId == "" {
		return ctx
	}
	if _, ok := utils.GetBusinessIdFromContext(ctx); !ok {
		ctx = context.WithValue(ctx, utils.ContextKeyBusinessId, businessId)
	}
	return ctx
}

// revertOrderToDraftOnDead puts a purchase order back to Draft when its
// confirm event can never be applied. A Confirmed order whose line items
// never reached the catalog would otherwise look folded when it is not.
func revertOrderToDraftOnDead(ctx context.Context, logger *logrus.Logger, msg config.PubSubMessage) {
	if msg.ReferenceType != string(models.OrderReferenceTypePurchaseOrder) {
		return
	}
	if models.PubSubMessageAction(msg.Action) != models.PubSubMessageActionConfirm {
		return
	}
	if msg.ReferenceId <= 0 {
		return
	}

	ctx = ensureBusinessContext(ctx, msg.BusinessId)

	po, err := models.GetPurchaseOrder(ctx, msg.ReferenceId)
	if err != nil {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"field":          "OutboxDeadRevert",
				"business_id":    msg.BusinessId,
				"reference_type": msg.ReferenceType,
				"reference_id":   msg.ReferenceId,
			}).Warn("failed to load purchase order for DEAD revert: " + err.Error())
		}
		return
	}
	if po.CurrentStatus != models.PurchaseOrderStatusConfirmed {
		return
	}

	if _, err := models.UpdateStatusPurchaseOrder(ctx, msg.ReferenceId, string(models.PurchaseOrderStatusDraft)); err != nil {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"field":          "OutboxDeadRevert",
				"business_id":    msg.BusinessId,
				"reference_type": msg.ReferenceType,
				"reference_id":   msg.ReferenceId,
			}).Warn("failed to revert purchase order to Draft after DEAD event: " + err.Error())
		}
		return
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "OutboxDeadRevert",
			"business_id":    msg.BusinessId,
			"reference_type": msg.ReferenceType,
			"reference_id":   msg.ReferenceId,
		}).Info("reverted purchase order to Draft after DEAD event")
	}
}
