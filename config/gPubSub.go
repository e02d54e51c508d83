package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// ReconciliationEventMessage is published once per finished reconciliation run.
type ReconciliationEventMessage struct {
	StoreId            string    `json:"store_id"`
	RunId              string    `json:"run_id"`
	PendingOnly        bool      `json:"pending_only"`
	FinishedAt         time.Time `json:"finished_at"`
	UpdatedProducts    []string  `json:"updated_products"`
	UnresolvedProducts []string  `json:"unresolved_products"`
	FailedCount        int       `json:"failed_count"`
	Cancelled          bool      `json:"cancelled"`
	CorrelationId      string    `json:"correlation_id"`
}

// ReceiptVerifiedMessage is pushed when an operator finishes checking a receipt.
type ReceiptVerifiedMessage struct {
	StoreId       string `json:"store_id"`
	ConferenceId  int    `json:"conference_id"`
	CorrelationId string `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

const pubsubConnectAttempts = 3

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return ""
}

// ReconciliationTopic returns PUBSUB_RECONCILE_TOPIC; empty disables publishing.
func ReconciliationTopic() string {
	return strings.TrimSpace(os.Getenv("PUBSUB_RECONCILE_TOPIC"))
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var lastErr error
	for attempt := 1; attempt <= pubsubConnectAttempts; attempt++ {
		var (
			c   *pubsub.Client
			err error
		)
		if credJSON != "" {
			c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
			c, err = pubsub.NewClient(ctx, projectID)
		}
		if err == nil {
			pubsubClient = c
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c, nil
		}
		lastErr = err
		sleep := backoff(attempt)
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, lastErr
}

// PublishReconciliationEvent publishes msg and returns the server-assigned message ID.
func PublishReconciliationEvent(ctx context.Context, msg ReconciliationEventMessage) (string, error) {
	topicName := ReconciliationTopic()
	if topicName == "" {
		return "", errors.New("PUBSUB_RECONCILE_TOPIC is required")
	}
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"store_id": msg.StoreId,
			"event":    "reconciliation.completed",
		},
	})
	return result.Get(ctx)
}

func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}
