package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"bitbucket.org/nordfoods/mrp_backend/workflow"
	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

var (
	businessMutexMap = make(map[string]*sync.Mutex)
	globalMutex      = &sync.Mutex{}
)

// RunOrderWorkflow starts a pull subscriber for order events. Deployments
// behind a push subscription use the /pubsub endpoint instead; the pull
// subscriber exists for environments without push delivery.
func RunOrderWorkflow() error {
	logger := config.GetLogger()
	ctx := context.Background()
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	// Specify the number of concurrent processes
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	// Create a callback function to handle messages.
	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.PubSubMessage{}
		err := json.Unmarshal(msg.Data, &m)
		if err != nil {
			config.LogError(logger, "orderWorkflow.go", "RunOrderWorkflow", "Unmarshaling pubsub message", msg.Data, err)
			// poisoned payload: ack to avoid redelivery loops
			msg.Ack()
			return
		}

		// Get or create the mutex for the current BusinessId
		globalMutex.Lock()
		mutex, exists := businessMutexMap[m.BusinessId]
		if !exists {
			mutex = &sync.Mutex{}
			businessMutexMap[m.BusinessId] = mutex
		}
		globalMutex.Unlock()

		// Lock the specific business mutex
		mutex.Lock()
		defer mutex.Unlock()

		ctx = context.WithValue(ctx, utils.ContextKeyBusinessId, m.BusinessId)
		ctx = context.WithValue(ctx, utils.ContextKeyUserId, 0)
		ctx = context.WithValue(ctx, utils.ContextKeyUserName, "System")
		markOutboxProcessing(ctx, m.ID)
		if err := workflow.ProcessMessage(ctx, logger, m); err != nil {
			if dead := markOutboxProcessFailure(ctx, logger, m, err); dead {
				revertOrderToDraftOnDead(ctx, logger, m)
			}
			logger.WithFields(logrus.Fields{
				"field":          "OrderWorkflow",
				"business_id":    m.BusinessId,
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	// Receive messages.
	go func() {
		err := sub.Receive(ctx, callback)

		if err != nil {
			config.LogError(logger, "orderWorkflow.go", "RunOrderWorkflow", "Failed to receive messages", nil, err)
		}
	}()

	return nil
}
