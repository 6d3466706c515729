package inference

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cenkalti/backoff/v4"
)

// BedrockProvider is the remote tier of the LocalInference chain,
// backed by AWS Bedrock's runtime invoke API.
type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockProvider wraps an existing Bedrock runtime client.
func NewBedrockProvider(client *bedrockruntime.Client, modelID string) *BedrockProvider {
	return &BedrockProvider{client: client, modelID: modelID}
}

type bedrockRequest struct {
	Prompt string `json:"prompt"`
}

type bedrockResponse struct {
	Completion string `json:"completion"`
}

// Generate invokes the configured model, retrying transient failures
// with exponential backoff.
func (b *BedrockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(bedrockRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("inference: marshal bedrock request: %w", err)
	}

	var completion string
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	op := func() error {
		out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId: &b.modelID,
			Body:    body,
		})
		if err != nil {
			return err
		}
		var resp bedrockResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("inference: unmarshal bedrock response: %w", err))
		}
		completion = resp.Completion
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("inference: bedrock invoke failed: %w", err)
	}
	return completion, nil
}
