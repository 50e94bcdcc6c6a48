package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/LJTian/DailyBriefing/internal/config"
	"github.com/mmcdole/gofeed"
)

const rssMaxEntries = 20

// RSSFetcher 解析 RSS/Atom 订阅源
type RSSFetcher struct {
	parser *gofeed.Parser
}

// NewRSSFetcher 使用传入的 client，保证订阅源请求同样受超时约束
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	p := gofeed.NewParser()
	p.Client = client
	return &RSSFetcher{parser: p}
}

func (f *RSSFetcher) fetch(ctx context.Context, src config.Source) ([]Item, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("rss: parse %s: %w", src.URL, err)
	}

	entries := feed.Items
	if len(entries) > rssMaxEntries {
		entries = entries[:rssMaxEntries]
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		link := e.Link
		if link == "" {
			link = src.URL
		}
		items = append(items, Item{
			Title: title,
			Desc:  strings.TrimSpace(e.Description),
			Link:  link,
		})
	}
	return items, nil
}
