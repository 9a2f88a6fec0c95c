package completion

import (
	"context"
	"fmt"

	"vetter/internal/config"
)

// New builds the Completer selected by the provider configuration.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	provider := cfg.Provider
	switch provider.Client {
	case config.ClientEino, "":
		return NewOpenAIEinoClient(ctx, provider.APIKey, provider.BaseURL, provider.Model, cfg.RequestTimeout())
	case config.ClientSDK:
		return NewSDKClient(provider.APIKey, provider.BaseURL, provider.Model, cfg.RequestTimeout()), nil
	case config.ClientStub:
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("invalid client: %s", provider.Client)
	}
}
