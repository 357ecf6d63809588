// Package ollama implements the ai.Client interface against a locally
// hosted Ollama server.
package ollama

import (
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/OFFIS-RIT/mosaic/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements the ai.Client interface using Ollama as
// the backend. Local servers load one model at a time, so requests are
// gated by a weighted semaphore.
type GraphOllamaClient struct {
	primaryModel  string
	advancedModel string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	PrimaryModel  string
	AdvancedModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient creates a new Ollama-based client connected to the
// server at BaseURL (or the default if empty).
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	if params.PrimaryModel == "" {
		return nil, errors.New("ollama: primary model required")
	}

	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := semaphore.NewWeighted(maxConcurrent)

	advanced := params.AdvancedModel
	if advanced == "" {
		advanced = params.PrimaryModel
	}

	return &GraphOllamaClient{
		primaryModel:  params.PrimaryModel,
		advancedModel: advanced,

		reqLock: sem,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}

func (c *GraphOllamaClient) resolveModel(options *ai.GenerateOptions) {
	if options.Model != "" {
		return
	}
	if options.Advanced {
		options.Model = c.advancedModel
	} else {
		options.Model = c.primaryModel
	}
}
