package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"stockpulse/internal/httpx"
	"stockpulse/internal/market"
)

// Remote calls an external classifier service (a fine-tuned financial text
// model behind an HTTP endpoint) and falls back to the keyword heuristic on
// any failure. The fallback is silent by contract: classification never
// surfaces an error to callers.
type Remote struct {
	URL      string
	Client   *httpx.Client
	Fallback Classifier
}

func NewRemote(url string, hc *httpx.Client) *Remote {
	return &Remote{URL: url, Client: hc, Fallback: Keyword{}}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Sentiment string `json:"sentiment"`
}

func (r *Remote) Classify(ctx context.Context, text string) market.Sentiment {
	if strings.TrimSpace(text) == "" {
		return market.Neutral
	}
	label, err := r.classify(ctx, text)
	if err != nil {
		log.Printf("sentiment: remote classifier failed, using keyword fallback: %v", err)
		return r.Fallback.Classify(ctx, text)
	}
	return label
}

func (r *Remote) classify(ctx context.Context, text string) (market.Sentiment, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	var body classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	switch market.Sentiment(body.Sentiment) {
	case market.Bullish, market.Bearish, market.Neutral:
		return market.Sentiment(body.Sentiment), nil
	}
	return "", fmt.Errorf("unexpected label %q", body.Sentiment)
}
