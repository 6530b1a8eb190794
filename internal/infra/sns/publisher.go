package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"terratrack_notifier/internal/domain/channel"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// RecipientAttribute is the message attribute subscription filter policies match on.
const RecipientAttribute = "recipient"

// API is the subset of the SNS client used here.
type API interface {
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
	Subscribe(ctx context.Context, params *awssns.SubscribeInput, optFns ...func(*awssns.Options)) (*awssns.SubscribeOutput, error)
}

// Publisher publishes digests to an SNS topic.
//
// Every message carries the recipient's address as a message attribute and every
// subscription is created with a filter policy on that attribute, so each subscriber
// only receives their own digest even though the topic is shared.
type Publisher struct {
	client API
}

// Config holds the SNS connection settings.
type Config struct {
	Region   string
	Endpoint string // Optional custom endpoint (LocalStack, etc.)
}

func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awssns.NewFromConfig(awsCfg, func(o *awssns.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Publisher{client: client}, nil
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(client API) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, msg channel.Message) (string, error) {
	input := &awssns.PublishInput{
		TopicArn: aws.String(msg.Target),
		Message:  aws.String(msg.Body),
	}
	if msg.Subject != "" {
		input.Subject = aws.String(msg.Subject)
	}
	if msg.Recipient != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			RecipientAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Recipient),
			},
		}
	}

	out, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns publish to %s: %w", msg.Target, err)
	}
	return aws.ToString(out.MessageId), nil
}

// Subscribe registers an e-mail subscription that only matches messages addressed
// to that e-mail. SNS asks the address owner to confirm before delivering.
func (p *Publisher) Subscribe(ctx context.Context, target, address string) (string, error) {
	policy, err := json.Marshal(map[string][]string{RecipientAttribute: {address}})
	if err != nil {
		return "", fmt.Errorf("encode filter policy: %w", err)
	}

	out, err := p.client.Subscribe(ctx, &awssns.SubscribeInput{
		TopicArn:              aws.String(target),
		Protocol:              aws.String("email"),
		Endpoint:              aws.String(address),
		ReturnSubscriptionArn: true,
		Attributes: map[string]string{
			"FilterPolicy": string(policy),
		},
	})
	if err != nil {
		return "", fmt.Errorf("sns subscribe %s to %s: %w", address, target, err)
	}
	return aws.ToString(out.SubscriptionArn), nil
}
