package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"clinix-backend/internal/bootstrap"
	"clinix-backend/internal/shared/config"
	"clinix-backend/internal/shared/server/respond"
	"clinix-backend/internal/shared/telemetry"
)

type httpHandler func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

func buildRouter() (*gin.Engine, error) {
	cfg := config.Load()
	telemetry.Init("clinix-lambda-http", cfg.Env, cfg.LogLevel)
	// the runtime freezes between invocations, so background goroutines cannot finish
	if cfg.DocumentProcessing == config.ProcessingAsync {
		cfg.DocumentProcessing = config.ProcessingSync
	}
	// migrations run from cmd/migrate before deploy
	app, err := bootstrap.BuildWithOptions(context.Background(), cfg, bootstrap.Options{
		SkipMigrations: true,
		SharedDB:       true,
	})
	if err != nil {
		return nil, err
	}
	return app.Router, nil
}

// newHandler builds the router once per execution environment. A failed
// bootstrap is sticky for the environment and every request gets a 503.
func newHandler(build func() (*gin.Engine, error)) httpHandler {
	var (
		once    sync.Once
		proxy   *ginadapter.GinLambdaV2
		initErr error
	)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		once.Do(func() {
			router, err := build()
			if err != nil {
				initErr = err
				return
			}
			proxy = ginadapter.NewV2(router)
		})
		if initErr != nil {
			telemetry.ErrorCtx(ctx, "lambda.bootstrap_failed", map[string]any{
				"error": initErr.Error(),
				"path":  req.RawPath,
			})
			return errorResponse(http.StatusServiceUnavailable, "bootstrap_failed", "service is starting up, please retry"), nil
		}
		return proxy.ProxyWithContext(ctx, req)
	}
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Cache-Control": "no-store",
		},
	}
}

func main() {
	lambda.Start(newHandler(buildRouter))
}
