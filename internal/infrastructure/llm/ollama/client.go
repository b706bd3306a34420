package ollama

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
	"github.com/kirillkom/frmf-pipeline/internal/infrastructure/resilience"
)

// Client is an inference Completer backed by a local Ollama server. The
// model is asked for JSON output since every enrichment prompt expects a
// single JSON object back.
type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string) *Client {
	return NewWithExecutor(baseURL, genModel, nil)
}

func NewWithExecutor(baseURL, genModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := generateRequest{
		Model:  c.genModel,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: generateOptions{
			Temperature: 0,
			NumPredict:  maxTokens,
		},
	}

	var text string
	call := func(callCtx context.Context) error {
		response, err := c.generate(callCtx, reqBody)
		if err != nil {
			return err
		}
		if response.DoneReason == "length" {
			slog.Debug("ollama_generate_truncated", "model", response.Model, "num_predict", maxTokens)
		}
		text = strings.TrimSpace(response.Response)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrMalformedResponse, "ollama generate", errors.New("empty response"))
	}
	return text, nil
}
