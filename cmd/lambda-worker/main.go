package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"clinix-backend/internal/bootstrap"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/storage/db"
	"clinix-backend/internal/shared/telemetry"
	"clinix-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Init("clinix-lambda-worker", cfg.Env, cfg.LogLevel)
	poolOpts := db.Preset(db.PoolWorker)
	built, err := bootstrap.BuildWithOptions(context.Background(), cfg, bootstrap.Options{
		SkipRouter:     true,
		SkipMigrations: true,
		DB:             &poolOpts,
		SharedDB:       true,
	})
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		return events.SQSEventResponse{BatchItemFailures: failAll(event.Records)}, initErr
	}
	return events.SQSEventResponse{BatchItemFailures: processRecords(ctx, app.AppointmentsService, event.Records)}, nil
}

// processRecords reports only retryable failures; messages that can never
// succeed are acknowledged so they leave the queue.
func processRecords(ctx context.Context, processor workerproc.DocumentProcessor, records []events.SQSMessage) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncDocumentJob("received")
		err := workerproc.HandleMessage(ctx, processor, record.Body)
		switch workerproc.Classify(err) {
		case workerproc.OutcomeDone:
			metrics.IncDocumentJob("completed")
		case workerproc.OutcomeDrop:
			telemetry.ErrorCtx(ctx, "worker.document.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncDocumentJob("deleted_unrecoverable")
		default:
			telemetry.ErrorCtx(ctx, "worker.document.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			metrics.IncDocumentJob("failed")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return failures
}

func failAll(records []events.SQSMessage) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0, len(records))
	for _, record := range records {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
