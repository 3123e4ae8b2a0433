package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"clinix-backend/internal/bootstrap"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/metrics"
	"clinix-backend/internal/shared/storage/db"
	"clinix-backend/internal/shared/telemetry"
	"clinix-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 300
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	telemetry.Init("clinix-worker", cfg.Env, cfg.LogLevel)

	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = defaultRegion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	poolOpts := db.Preset(db.PoolWorker)
	app, err := bootstrap.BuildWithOptions(ctx, cfg, bootstrap.Options{SkipRouter: true, DB: &poolOpts})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	c := &consumer{
		client:      sqsClient,
		queueURL:    queueURL,
		processor:   app.AppointmentsService,
		visibility:  int32(visibilitySeconds),
		concurrency: concurrency,
	}
	telemetry.Info("worker.started", map[string]any{
		"queue_url":          queueURL,
		"concurrency":        concurrency,
		"visibility_seconds": visibilitySeconds,
	})

	inFlight := c.run(ctx)

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	if !waitTimeout(inFlight, shutdownTimeout) {
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

// consumer long-polls the document queue and hands each message to a
// bounded set of goroutines.
type consumer struct {
	client      sqsAPI
	queueURL    string
	processor   workerproc.DocumentProcessor
	visibility  int32
	concurrency int
	// pause after a failed receive; zero means defaultReceiveBackoff
	backoff time.Duration
}

const defaultReceiveBackoff = 2 * time.Second

// run polls until ctx is done and returns the group of jobs still in flight.
func (c *consumer) run(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(1, c.concurrency))
	backoff := c.backoff
	if backoff <= 0 {
		backoff = defaultReceiveBackoff
	}

	for ctx.Err() == nil {
		resp, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   c.visibility,
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				// undispatched messages reappear after the visibility timeout
				return &wg
			case sem <- struct{}{}:
			}
			metrics.IncDocumentJob("received")
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// in-flight jobs finish even after shutdown starts
				handleMessage(context.WithoutCancel(ctx), c.client, c.queueURL, c.processor, m)
			}(msg)
		}
	}
	return &wg
}

// waitTimeout reports whether wg finished within d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, processor workerproc.DocumentProcessor, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	if strings.TrimSpace(body) == "" {
		fields := baseFields(msg, "", "")
		fields["body_len"] = 0
		telemetry.Error("worker.document.empty_body", fields)
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncDocumentJob("deleted_unrecoverable")
		}
		return
	}

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.AppointmentID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.document.rejected", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.AppointmentID, decoded.RequestID) {
			metrics.IncDocumentJob("deleted_unrecoverable")
		}
		return
	}

	telemetry.Info("worker.document.received", baseFields(msg, decoded.AppointmentID, decoded.RequestID))

	err = workerproc.Process(ctx, processor, decoded)
	switch outcome := workerproc.Classify(err); outcome {
	case workerproc.OutcomeDone:
		if deleteMessage(ctx, client, queueURL, msg, decoded.AppointmentID, decoded.RequestID) {
			telemetry.Info("worker.document.completed", baseFields(msg, decoded.AppointmentID, decoded.RequestID))
			metrics.IncDocumentJob("completed")
		}
	case workerproc.OutcomeDrop:
		fields := baseFields(msg, decoded.AppointmentID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.document.dropped", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.AppointmentID, decoded.RequestID) {
			metrics.IncDocumentJob("deleted_unrecoverable")
		}
	default:
		fields := baseFields(msg, decoded.AppointmentID, decoded.RequestID)
		fields["error"] = err.Error()
		fields["outcome"] = outcome.String()
		telemetry.Error("worker.document.failed", fields)
		metrics.IncDocumentJob("failed")
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, appointmentID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, appointmentID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.document.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, appointmentID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.document.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, appointmentID, requestID string) map[string]any {
	fields := map[string]any{
		"appointment_id": appointmentID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
