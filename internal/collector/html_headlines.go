package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/DailyBriefing/internal/config"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	browserUserAgent = "Mozilla/5.0"

	headlineMinLen   = 30
	headlineMaxLen   = 180
	htmlMaxHeadlines = 15
)

// 按优先级依次扫描：标题标签 → 带 headline/title class 的元素 → 普通链接
var headlineSelectors = []string{"h1", "h2", "h3", ".headline", ".Title", ".title", "a"}

// HTMLFetcher 从普通网页中“尽力而为”地提取新闻标题
type HTMLFetcher struct {
	timeout   time.Duration
	userAgent string
}

func NewHTMLFetcher(timeout time.Duration) *HTMLFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTMLFetcher{timeout: timeout, userAgent: browserUserAgent}
}

func (f *HTMLFetcher) fetch(ctx context.Context, src config.Source) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 每次抓取新建 collector，避免同一 URL 第二天被当作“已访问”跳过
	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.SetRequestTimeout(f.timeout)
	// colly 的请求不带 ctx，由传输层把取消信号接到底层连接上
	c.WithTransport(&ctxTransport{ctx: ctx, base: http.DefaultTransport})

	var (
		headlines []string
		parseErr  error
	)
	// 不依赖 Content-Type 是否为 html，直接解析响应体
	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			parseErr = err
			return
		}
		headlines = ExtractHeadlines(doc.Selection, htmlMaxHeadlines)
	})

	if err := c.Visit(src.URL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("html: visit %s: %w", src.URL, ctxErr)
		}
		return nil, fmt.Errorf("html: visit %s: %w", src.URL, err)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("html: parse %s: %w", src.URL, parseErr)
	}

	items := make([]Item, 0, len(headlines))
	for _, h := range headlines {
		items = append(items, Item{Title: h, Link: src.URL})
	}
	return items, nil
}

// ctxTransport 在 ctx 取消时中止进行中的请求，包括读取响应体的阶段
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)

	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		stop()
		cancel()
		return nil, err
	}
	resp.Body = &releaseBody{ReadCloser: resp.Body, release: func() {
		stop()
		cancel()
	}}
	return resp, nil
}

// releaseBody 关闭响应体时释放请求级别的 ctx
type releaseBody struct {
	io.ReadCloser
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

// ExtractHeadlines 按 headlineSelectors 的顺序收集候选文本，
// 只保留长度在 [30, 180] 之间的，按 NormalizeKey 去重，最多 limit 条
func ExtractHeadlines(root *goquery.Selection, limit int) []string {
	if limit <= 0 {
		return nil
	}
	var candidates []string
	for _, sel := range headlineSelectors {
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			txt := CollapseSpaces(visibleText(s))
			if n := RuneLen(txt); n >= headlineMinLen && n <= headlineMaxLen {
				candidates = append(candidates, txt)
			}
		})
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, limit)
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		k := NormalizeKey(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// visibleText 拼接元素下所有文本节点，节点之间用空格分隔（goquery 的 Text() 不加分隔符）
func visibleText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		*parts = append(*parts, n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
