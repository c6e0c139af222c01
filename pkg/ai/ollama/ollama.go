package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/OFFIS-RIT/kgops/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements ai.GraphAIClient against an Ollama server.
type GraphOllamaClient struct {
	descriptionModel string
	extractionModel  string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

type NewGraphOllamaClientParams struct {
	DescriptionModel string
	ExtractionModel  string

	BaseURL string
	ApiKey  string

	// MaxConcurrentRequests bounds in-flight chat calls. Values below 1 mean 1.
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL, or the
// environment default when BaseURL is empty.
func NewGraphOllamaClient(params NewGraphOllamaClientParams) (*GraphOllamaClient, error) {
	var u *url.URL
	if params.BaseURL != "" {
		parsed, err := url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
		u = parsed
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{headers: headers, rt: http.DefaultTransport},
	}

	var cli *api.Client
	if u != nil {
		cli = api.NewClient(u, httpClient)
	} else {
		env, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
		cli = env
	}

	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.DescriptionModel
	}

	return &GraphOllamaClient{
		descriptionModel: params.DescriptionModel,
		extractionModel:  extractionModel,
		reqLock:          semaphore.NewWeighted(max(params.MaxConcurrentRequests, 1)),
		Client:           cli,
	}, nil
}

// ResetMetrics clears all accumulated token and timing metrics.
func (c *GraphOllamaClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the token usage and timing since the last reset.
func (c *GraphOllamaClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *GraphOllamaClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	c.metrics.Add(m)
	c.metricsLock.Unlock()
}
