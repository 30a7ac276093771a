// Package synthesis turns input text into audio through a remote router and
// keeps the results as temporary files owned by comparison sessions.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Output is one generated result: either a file produced by the generator
// or the raw bytes.
type Output struct {
	Path        string
	Data        []byte
	ContentType string
}

// Generator produces audio for one candidate. Implementations must be safe
// for concurrent use and must not retry.
type Generator interface {
	Generate(ctx context.Context, input, candidateID string) (Output, error)
}

// maxResponseBytes caps one generated clip.
const maxResponseBytes = 32 << 20

// HTTPGenerator posts {"text", "model"} to a synthesis router and reads the
// audio body of the response.
type HTTPGenerator struct {
	endpoint string
	client   *http.Client
}

func NewHTTPGenerator(endpoint string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, input, candidateID string) (Output, error) {
	body, err := json.Marshal(synthesizeRequest{Text: input, Model: candidateID})
	if err != nil {
		return Output{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("call synthesis router: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Output{}, fmt.Errorf("synthesis router returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return Output{}, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return Output{}, fmt.Errorf("synthesis router returned no audio")
	}
	if len(data) > maxResponseBytes {
		return Output{}, fmt.Errorf("audio exceeds %d bytes", maxResponseBytes)
	}
	return Output{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
