package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/LJTian/DailyBriefing/internal/config"
)

const (
	jsonMaxChars         = 4000
	jsonMaxResponseBytes = 1 << 20 // 1MB
	weatherJSONTitle     = "Weather JSON"
)

// JSONFetcher 拉取 JSON 接口（目前只有天气），原文截断后放进 Desc 交给下游解析
type JSONFetcher struct {
	client *http.Client
}

func NewJSONFetcher(client *http.Client) *JSONFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &JSONFetcher{client: client}
}

func (f *JSONFetcher) fetch(ctx context.Context, src config.Source) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("json: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("json: get %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("json: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, jsonMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("json: read body: %w", err)
	}

	return []Item{{
		Title: weatherJSONTitle,
		Desc:  truncateRunes(string(body), jsonMaxChars),
		Link:  src.URL,
	}}, nil
}
