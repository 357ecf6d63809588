// Package openai implements the ai.Client interface against any
// OpenAI-compatible chat completion endpoint.
package openai

import (
	"errors"
	"sync"

	"github.com/OFFIS-RIT/mosaic/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GraphOpenAIClient is the OpenAI-backed generation client. It routes
// requests to a primary model for bulk extraction and an advanced model
// for person detail and profile synthesis.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	primaryModel  string
	advancedModel string

	chatURL string
	chatKey string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient.
//
// PrimaryModel handles the bulk extraction calls; AdvancedModel handles
// calls issued with ai.WithAdvanced(). ChatURL and ChatKey configure the
// chat/completion API endpoint.
type NewGraphOpenAIClientParams struct {
	PrimaryModel  string
	AdvancedModel string

	ChatURL string
	ChatKey string
}

// NewGraphOpenAIClient creates and returns a new GraphOpenAIClient
// configured with the provided parameters.
//
// Example:
//
//	params := openai.NewGraphOpenAIClientParams{
//		PrimaryModel:  "gpt-4o-mini",
//		AdvancedModel: "gpt-4o",
//		ChatURL:       "https://api.openai.com/v1",
//		ChatKey:       os.Getenv("OPENAI_API_KEY"),
//	}
//	client, err := openai.NewGraphOpenAIClient(params)
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) (*GraphOpenAIClient, error) {
	if params.ChatKey == "" {
		return nil, errors.New("openai: chat API key required")
	}
	if params.PrimaryModel == "" {
		return nil, errors.New("openai: primary model required")
	}
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)

	advanced := params.AdvancedModel
	if advanced == "" {
		advanced = params.PrimaryModel
	}

	return &GraphOpenAIClient{
		primaryModel:  params.PrimaryModel,
		advancedModel: advanced,

		chatURL: params.ChatURL,
		chatKey: params.ChatKey,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient: chatClient,
	}, nil
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *GraphOpenAIClient) resolveModel(options *ai.GenerateOptions) {
	if options.Model != "" {
		return
	}
	if options.Advanced {
		options.Model = c.advancedModel
	} else {
		options.Model = c.primaryModel
	}
}
