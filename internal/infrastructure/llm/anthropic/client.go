package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/resilience"
)

// Client is an inference Completer on the Anthropic Messages API, either
// directly or through Amazon Bedrock. SDK retries are disabled; retries and
// circuit breaking belong to the resilience executor.
type Client struct {
	client    sdk.Client
	model     string
	operation string
	executor  *resilience.Executor
}

// New creates a client for the public Anthropic API.
func New(apiKey, model string, executor *resilience.Executor, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &Client{
		client:    sdk.NewClient(append(base, opts...)...),
		model:     model,
		operation: "anthropic.messages",
		executor:  executor,
	}
}

// NewBedrock creates a client that signs requests with the shared AWS
// config and targets the Bedrock runtime of its region.
func NewBedrock(awsCfg aws.Config, model string, executor *resilience.Executor, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		bedrock.WithConfig(awsCfg),
		option.WithMaxRetries(0),
	}
	return &Client{
		client:    sdk.NewClient(append(base, opts...)...),
		model:     model,
		operation: "bedrock.messages",
		executor:  executor,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(0),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}

	var text string
	call := func(callCtx context.Context) error {
		msg, err := c.client.Messages.New(callCtx, params)
		if err != nil {
			return err
		}
		text = messageText(msg)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, c.operation, call, classifyAnthropicError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(c.operation, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrMalformedResponse, c.operation, errors.New("no text content in response"))
	}
	return text, nil
}

func messageText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
