// Package queue sends messages to an SQS queue.
package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	cfgpkg "github.com/fatflowers/marketplace/pkg/config"
)

// sendAPI is the subset of *sqs.Client used here.
type sendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSSender struct {
	client   sendAPI
	queueURL string
}

// NewSQSSender builds a client from static credentials when both key and secret
// are configured, otherwise from the default AWS credential chain.
func NewSQSSender(ctx context.Context, cfg cfgpkg.EventsConfig) (*SQSSender, error) {
	var awsCfg aws.Config
	var err error
	if cfg.AWSAccessKey != "" && cfg.AWSSecret != "" {
		awsCfg, err = awsConfig.LoadDefaultConfig(ctx,
			awsConfig.WithRegion(cfg.AWSRegion),
			awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKey,
				cfg.AWSSecret,
				"",
			)),
		)
	} else {
		awsCfg, err = awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.AWSRegion))
	}
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSSender{client: sqs.NewFromConfig(awsCfg), queueURL: cfg.SQSQueueURL}, nil
}

// Send enqueues body with the event type as a message attribute and returns the message id.
func (s *SQSSender) Send(ctx context.Context, eventType string, groupKey string, body []byte) (string, error) {
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	}
	if groupKey != "" {
		in.MessageAttributes["group_key"] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(groupKey)}
	}
	out, err := s.client.SendMessage(ctx, in)
	if err != nil {
		return "", fmt.Errorf("sqs send %s: %w", eventType, err)
	}
	return aws.ToString(out.MessageId), nil
}
