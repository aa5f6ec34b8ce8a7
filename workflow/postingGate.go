package workflow

import (
	"context"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
)

// EnforcePostingGate validates the purchase period lock for the message
// (worker-side). API validation can be bypassed by replays and reconcile
// runs, so the gate is enforced again before any catalog fold.
func EnforcePostingGate(ctx context.Context, msg config.PubSubMessage) error {
	if msg.ReferenceType != string(models.OrderReferenceTypePurchaseOrder) {
		return nil
	}
	return models.ValidatePurchaseLock(ctx, msg.TransactionDateTime, msg.BusinessId)
}
