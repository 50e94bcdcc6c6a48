package processor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/LJTian/DailyBriefing/internal/collector"
)

func titles(items []collector.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestCompressDeduplicateKeepsFirstOccurrence(t *testing.T) {
	items := []collector.Item{
		{Title: "City Council Approves New Budget", Link: "https://example.com/1"},
		{Title: "city council: approves new budget", Link: "https://example.com/2"},
		{Title: "Short", Link: "https://example.com/3"},
		{Title: "   Tybee Island reopens north beach   ", Link: "https://example.com/4"},
		{Title: "CITY COUNCIL APPROVES NEW BUDGET", Link: "https://example.com/5"},
	}

	out := Compress(items, 8)
	if len(out) != 2 {
		t.Fatalf("expected 2 items after dedupe, got %d: %v", len(out), titles(out))
	}
	if out[0].Link != "https://example.com/1" {
		t.Fatalf("first occurrence should win, got %q", out[0].Link)
	}
	// 保留原始条目，不做修改
	if out[1].Title != "   Tybee Island reopens north beach   " {
		t.Fatalf("compress should not mutate titles: %q", out[1].Title)
	}
}

func TestCompressRespectsLimit(t *testing.T) {
	var items []collector.Item
	for i := 0; i < 20; i++ {
		items = append(items, collector.Item{Title: fmt.Sprintf("Generated headline %02d", i)})
	}

	for _, limit := range []int{0, 1, 8, 19, 20, 50} {
		out := Compress(items, limit)
		want := limit
		if want > len(items) {
			want = len(items)
		}
		if len(out) != want {
			t.Fatalf("Compress(limit=%d) length = %d, want %d", limit, len(out), want)
		}
		for i, it := range out {
			if it.Title != items[i].Title {
				t.Fatalf("Compress(limit=%d) changed order at %d: %q", limit, i, it.Title)
			}
		}
	}
}

func TestCompressDropsShortTitles(t *testing.T) {
	items := []collector.Item{
		{Title: "1234567"},      // 7 个字符
		{Title: "   abc    "},   // 去空白后 3 个字符
		{Title: "12345678"},     // 刚好 8 个字符
		{Title: "短标题也要够八个字符吗"}, // 11 个字符（按 rune 计）
		{Title: "日本語"},
	}

	out := Compress(items, 8)
	got := titles(out)
	if len(got) != 2 || got[0] != "12345678" || got[1] != "短标题也要够八个字符吗" {
		t.Fatalf("unexpected compress output: %v", got)
	}
	for _, it := range out {
		if collector.RuneLen(strings.TrimSpace(it.Title)) < 8 {
			t.Fatalf("short title leaked into output: %q", it.Title)
		}
	}
}

func TestCompressUniqueKeysProperty(t *testing.T) {
	// 组合生成大量带大小写与标点变化的标题
	bases := []string{"Port expansion vote delayed", "Forsyth Park concert series", "Ferry schedule changes"}
	decor := []func(string) string{
		strings.ToUpper,
		strings.ToLower,
		func(s string) string { return s + "!!!" },
		func(s string) string { return "  " + s + "  " },
		func(s string) string { return strings.ReplaceAll(s, " ", " -- ") },
	}
	var items []collector.Item
	for _, d := range decor {
		for _, b := range bases {
			items = append(items, collector.Item{Title: d(b)})
		}
	}

	out := Compress(items, 100)
	seen := map[string]bool{}
	for _, it := range out {
		k := collector.NormalizeKey(strings.TrimSpace(it.Title))
		if seen[k] {
			t.Fatalf("duplicate normalized key %q in output", k)
		}
		seen[k] = true
	}
	// 大写、小写、加空白、插入“--”的版本与原标题 key 相同；末尾“!!!”会多出一个空格，key 不同
	if len(out) != 2*len(bases) {
		t.Fatalf("expected %d unique items, got %d: %v", 2*len(bases), len(out), titles(out))
	}
}
