package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/jsonapi"
)

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com"

// GoogleModel represents a supported Google embedding model.
type GoogleModel string

const (
	ModelTextEmbedding004   GoogleModel = "text-embedding-004"
	ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"
)

func (m GoogleModel) dimensions() int {
	switch m {
	case ModelGeminiEmbedding001:
		return 3072
	default:
		return 768
	}
}

// GoogleEmbedder generates embeddings using Google's Generative AI API.
type GoogleEmbedder struct {
	apiKey     string
	model      GoogleModel
	baseURL    string
	httpClient *http.Client
}

// NewGoogleEmbedder creates a new Google embedder. baseURL defaults to the
// public Generative Language endpoint.
func NewGoogleEmbedder(apiKey string, model GoogleModel, baseURL string) *GoogleEmbedder {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	if model == "" {
		model = ModelTextEmbedding004
	}
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

func (e *GoogleEmbedder) Name() string     { return string(e.model) }
func (e *GoogleEmbedder) Dimensions() int  { return e.model.dimensions() }
func (e *GoogleEmbedder) Provider() string { return "google" }

type googleEmbedRequest struct {
	Model    string        `json:"model"`
	Content  googleContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func googleTaskType(task TaskType) string {
	switch task {
	case TaskRetrievalQuery:
		return "RETRIEVAL_QUERY"
	case TaskRetrievalDocument:
		return "RETRIEVAL_DOCUMENT"
	default:
		return ""
	}
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for _, text := range texts {
		emb, err := e.embedSingle(ctx, text, task)
		if err != nil {
			return nil, err
		}
		results = append(results, emb)
	}
	return results, nil
}

func (e *GoogleEmbedder) embedSingle(ctx context.Context, text string, task TaskType) ([]float32, error) {
	in := googleEmbedRequest{
		Model:    "models/" + string(e.model),
		Content:  googleContent{Parts: []googlePart{{Text: text}}},
		TaskType: googleTaskType(task),
	}
	var out googleEmbedResponse
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", e.baseURL, e.model)
	if err := jsonapi.Post(ctx, e.httpClient, "google embed", url, http.Header{"X-Goog-Api-Key": {e.apiKey}}, in, &out); err != nil {
		return nil, err
	}
	return out.Embedding.Values, nil
}
