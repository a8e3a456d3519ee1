// Package sqs publishes replay requests to an SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/config"
	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/services"
)

// SendAPI is the subset of the SQS client used for publishing
type SendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Client represents an SQS replay publisher
type Client struct {
	api      SendAPI
	queueURL string
	log      *zap.Logger
}

// NewClient creates a new SQS client from the replay queue settings
func NewClient(ctx context.Context, cfg config.SQSConfig, log *zap.Logger) (*Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	var clientOpts []func(*sqs.Options)

	switch {
	case cfg.AccessKeyID != "":
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	case cfg.Endpoint != "":
		// ElasticMQ and LocalStack accept any static credentials.
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
	}

	if cfg.Endpoint != "" {
		log.Info("configuring SQS for local endpoint", zap.String("endpoint", cfg.Endpoint))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("SQS replay client created",
		zap.String("region", cfg.Region),
		zap.String("queue_url", cfg.QueueURL))

	return NewWithAPI(sqs.NewFromConfig(awsCfg, clientOpts...), cfg.QueueURL, log), nil
}

// NewWithAPI wraps an existing SendAPI implementation
func NewWithAPI(api SendAPI, queueURL string, log *zap.Logger) *Client {
	return &Client{api: api, queueURL: queueURL, log: log}
}

// QueueURL returns the configured queue URL
func (c *Client) QueueURL() string {
	return c.queueURL
}

// replayMessage is the body sent for each replayed callback
type replayMessage struct {
	MessageID    string          `json:"messageId"`
	CallbackType string          `json:"callbackType"`
	Payload      json.RawMessage `json:"payload"`
	ReceivedAt   time.Time       `json:"receivedAt"`
	ReplayedAt   time.Time       `json:"replayedAt"`
}

// Publish sends the callback to the replay queue
func (c *Client) Publish(ctx context.Context, callback models.WebhookCallback) error {
	payload := callback.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	body, err := json.Marshal(replayMessage{
		MessageID:    callback.MessageID,
		CallbackType: callback.CallbackType,
		Payload:      payload,
		ReceivedAt:   callback.ReceivedAt,
		ReplayedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal replay message: %w", err)
	}

	_, err = c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"CallbackType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(callback.CallbackType),
			},
			"MessageId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(callback.MessageID),
			},
		},
	})
	if err != nil {
		c.log.Error("failed to send replay message to SQS",
			zap.String("message_id", callback.MessageID),
			zap.String("callback_type", callback.CallbackType),
			zap.Error(err))
		return services.WrapExternal("failed to send message to SQS", err)
	}

	c.log.Info("replay published to SQS",
		zap.String("message_id", callback.MessageID),
		zap.String("callback_type", callback.CallbackType))
	return nil
}
