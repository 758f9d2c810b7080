package factory

import (
	"github.com/amari-ai/go-amari/pkg/augment"
	"github.com/amari-ai/go-amari/pkg/llm"
)

// NewAugmentedClient creates a provider client and wraps it with the
// live web-search middleware. The returned client is a drop-in
// replacement: same interface, same response shape, but prompts that
// need current information are augmented with search results before
// they reach the provider.
//
// When the augment config leaves SnippetBudget unset, the budget is
// derived from the model's context window.
func NewAugmentedClient(clientConfig llm.ClientConfig, augmentConfig augment.Config) (llm.Client, error) {
	client, err := New().CreateClient(clientConfig)
	if err != nil {
		return nil, err
	}

	if augmentConfig.SnippetBudget <= 0 {
		augmentConfig.SnippetBudget = augment.BudgetForModel(client.GetModelInfo())
	}

	liveSearch, err := augment.NewLiveSearch(augmentConfig)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return llm.ClientWithMiddleware(client, []llm.Middleware{liveSearch}), nil
}
