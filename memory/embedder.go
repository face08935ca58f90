package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// EmbedderErrorKind distinguishes transport failures from malformed
// responses, so a misconfigured endpoint can be diagnosed separately from
// a network outage.
type EmbedderErrorKind int

const (
	// KindTransport covers network errors and non-2xx HTTP responses.
	KindTransport EmbedderErrorKind = iota
	// KindShape covers a 2xx response whose JSON body doesn't match the
	// expected { "data": [ { "embedding": [...] } ] } shape.
	KindShape
)

// EmbedderError is the typed error an embedder returns on failure. store
// returns it wrapped (reachable with errors.As); recall swallows it and
// degrades to keyword-only.
type EmbedderError struct {
	Kind EmbedderErrorKind
	Err  error
}

func (e *EmbedderError) Error() string {
	return fmt.Sprintf("embedder: %v", e.Err)
}

func (e *EmbedderError) Unwrap() error { return e.Err }

// Provider maps batches of text to fixed-dimension vectors. Dimensions
// reports the vector length, 0 meaning "no embeddings available".
type Provider interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne embeds a single text via the batch operation, failing if the
// provider returns an empty result.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	results, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &EmbedderError{Kind: KindShape, Err: fmt.Errorf("empty embedding result")}
	}
	return results[len(results)-1], nil
}

// NoopProvider is the null embedder: keyword-only degradation with no
// dense-vector side at all.
type NoopProvider struct{}

func (NoopProvider) Name() string       { return "none" }
func (NoopProvider) Dimensions() int    { return 0 }
func (NoopProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, nil
}

// OpenAIProvider speaks the OpenAI-compatible embeddings wire protocol
// (POST {base}/embeddings, bearer auth, {model, input}) against any
// base URL, hosted or self-hosted.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIProvider builds a provider against baseURL (trailing slash
// trimmed) using the teacher's go-openai client with a custom BaseURL,
// rather than hand-rolling an HTTP call.
func NewOpenAIProvider(baseURL, apiKey, model string, dims int) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dims:   dims,
	}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) Dimensions() int { return p.dims }

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, &EmbedderError{Kind: KindTransport, Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &EmbedderError{Kind: KindShape, Err: fmt.Errorf("missing 'data' in embedding response")}
	}

	out := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		if len(item.Embedding) == 0 {
			return nil, &EmbedderError{Kind: KindShape, Err: fmt.Errorf("missing 'embedding' in response item %d", i)}
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		out[i] = vec
	}
	return out, nil
}

const openAIHostedBaseURL = "https://api.openai.com/v1"

// NewProvider selects a concrete provider by tag: "openai" for the hosted
// endpoint, "custom:<url>" for a compatible endpoint at url, anything else
// (including empty) for the null provider.
func NewProvider(tag, apiKey, model string, dims int) Provider {
	switch {
	case tag == "openai":
		return NewOpenAIProvider(openAIHostedBaseURL, apiKey, model, dims)
	case strings.HasPrefix(tag, "custom:"):
		base := strings.TrimPrefix(tag, "custom:")
		return NewOpenAIProvider(base, apiKey, model, dims)
	default:
		return NoopProvider{}
	}
}
