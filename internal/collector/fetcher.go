package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/LJTian/DailyBriefing/internal/config"
)

// DefaultTimeout 单个数据源请求的超时时间
const DefaultTimeout = 20 * time.Second

// Item 一条标题/摘要
type Item struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Link  string `json:"link"`
}

// Result 单个数据源的抓取结果。Err 非空时 Items 只包含一条占位条目，
// 标题里带有源地址与失败原因，由调用方决定是否继续使用。
type Result struct {
	Source config.Source
	Items  []Item
	Err    error
}

// OK 抓取是否成功
func (r Result) OK() bool {
	return r.Err == nil
}

// Headlines 返回可进入简报的条目；失败结果只有在 reciteErrors 为 true 时才返回占位条目
func (r Result) Headlines(reciteErrors bool) []Item {
	if r.Err != nil && !reciteErrors {
		return nil
	}
	return r.Items
}

// Fetcher 抽象“按数据源描述抓取条目”，任何失败都体现在 Result.Err 中，不会向上抛出
type Fetcher interface {
	Fetch(ctx context.Context, src config.Source) Result
}

// sourceFetcher 针对某一种数据源类型的具体实现
type sourceFetcher interface {
	fetch(ctx context.Context, src config.Source) ([]Item, error)
}

// MultiFetcher 按 Source.Kind() 分派到 rss / json / html 抓取器
type MultiFetcher struct {
	byType map[config.SourceType]sourceFetcher
}

func NewMultiFetcher(timeout time.Duration) *MultiFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	return &MultiFetcher{
		byType: map[config.SourceType]sourceFetcher{
			config.SourceRSS:  NewRSSFetcher(client),
			config.SourceJSON: NewJSONFetcher(client),
			config.SourceHTML: NewHTMLFetcher(timeout),
		},
	}
}

func (m *MultiFetcher) Fetch(ctx context.Context, src config.Source) (res Result) {
	log.Printf("fetch %s (%s)...", src.Name, src.Kind())

	// 第三方解析库若 panic 也只影响这一个源
	defer func() {
		if r := recover(); r != nil {
			res = failed(src, fmt.Errorf("panic: %v", r))
			log.Printf("fetch %s error: %v", src.Name, res.Err)
		}
	}()

	f, ok := m.byType[src.Kind()]
	if !ok {
		res = failed(src, fmt.Errorf("unsupported source type %q", src.Type))
		log.Printf("fetch %s error: %v", src.Name, res.Err)
		return res
	}

	items, err := f.fetch(ctx, src)
	if err != nil {
		log.Printf("fetch %s error: %v", src.Name, err)
		return failed(src, err)
	}
	if len(items) == 0 {
		log.Printf("fetch %s got 0 items", src.Name)
	}
	return Result{Source: src, Items: items}
}

func failed(src config.Source, err error) Result {
	return Result{
		Source: src,
		Items: []Item{{
			Title: fmt.Sprintf("Error fetching %s: %v", src.URL, err),
			Desc:  "",
			Link:  src.URL,
		}},
		Err: err,
	}
}
