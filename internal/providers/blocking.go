package providers

import (
	"context"

	"github.com/nexus-assistant/core/pkg/models"
)

// blockingClient adapts a streaming LLMProvider into the blocking Client
// interface the Multiplexer dispatches to, by draining its channel via
// CollectStream and collapsing it into a single response.
type blockingClient struct {
	provider LLMProvider
}

// NewBlockingClient wraps a streaming LLMProvider as a blocking Client.
func NewBlockingClient(provider LLMProvider) Client {
	return &blockingClient{provider: provider}
}

func (b *blockingClient) Name() string { return b.provider.Name() }

func (b *blockingClient) Complete(ctx context.Context, req *CompletionRequest) (*models.LLMResponse, error) {
	chunks, err := b.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := CollectStream(chunks)
	if err != nil {
		return nil, err
	}
	resp.Model = req.Model
	return resp, nil
}
