package processor

import (
	"strings"

	"github.com/LJTian/DailyBriefing/internal/collector"
)

// DefaultLimit 每个栏目最多保留的条目数
const DefaultLimit = 8

// 标题去掉首尾空白后至少要有这么多字符
const minTitleLen = 8

// Compress 按输入顺序去重并截断：标题过短的丢弃，NormalizeKey 相同的只保留第一次出现的，
// 收集满 limit 条即停止。返回的条目保持原样，不做修改。
func Compress(items []collector.Item, limit int) []collector.Item {
	if limit <= 0 {
		return []collector.Item{}
	}

	out := make([]collector.Item, 0, min(limit, len(items)))
	seen := make(map[string]struct{})

	for _, it := range items {
		t := strings.TrimSpace(it.Title)
		if collector.RuneLen(t) < minTitleLen {
			continue
		}
		key := collector.NormalizeKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		out = append(out, it)
		if len(out) >= limit {
			break
		}
	}

	return out
}
