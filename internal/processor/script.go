package processor

import (
	"strings"
	"time"

	"github.com/LJTian/DailyBriefing/internal/collector"
)

const (
	DefaultOpening = "Good morning — Evelyn Brooke here in Savannah. Let’s get straight to what’s stirring today."
	DefaultClosing = "That’s your Savannah Daily Briefing. I’ll be back with you tomorrow morning at six. Have a strong day."

	civicHeader   = "City and civic moves:"
	cultureHeader = "Culture and city life:"
	weatherHeader = "Weather and atmosphere:"
)

// 口播语速估算：每分钟 150 个单词
const wordsPerMinute = 150

// ScriptBuilder 拼装口播稿，开场与结束语可由配置覆盖
type ScriptBuilder struct {
	Opening string
	Closing string
}

func NewScriptBuilder(opening, closing string) ScriptBuilder {
	b := ScriptBuilder{Opening: opening, Closing: closing}
	if strings.TrimSpace(b.Opening) == "" {
		b.Opening = DefaultOpening
	}
	if strings.TrimSpace(b.Closing) == "" {
		b.Closing = DefaultClosing
	}
	return b
}

// BuildScript 使用默认开场与结束语
func BuildScript(weatherText string, civic, culture []collector.Item) string {
	return NewScriptBuilder("", "").Build(weatherText, civic, culture)
}

// Build 顺序：开场 → 市政 → 文化 → 天气 → 结束语；空栏目整段省略。
// 结果中任意空白都被折叠为单个空格，且没有首尾空白。
func (b ScriptBuilder) Build(weatherText string, civic, culture []collector.Item) string {
	parts := []string{b.Opening}

	if len(civic) > 0 {
		parts = append(parts, civicHeader)
		parts = appendTitles(parts, civic)
	}
	if len(culture) > 0 {
		parts = append(parts, cultureHeader)
		parts = appendTitles(parts, culture)
	}
	if weatherText != "" {
		parts = append(parts, weatherHeader, weatherText)
	}
	parts = append(parts, b.Closing)

	return collector.CollapseSpaces(strings.Join(parts, " "))
}

func appendTitles(parts []string, items []collector.Item) []string {
	for _, it := range items {
		parts = append(parts, strings.TrimRight(strings.TrimSpace(it.Title), ".")+".")
	}
	return parts
}

// EstimateDuration 粗略估算口播时长
func EstimateDuration(script string) time.Duration {
	words := len(strings.Fields(script))
	return time.Duration(words) * time.Minute / wordsPerMinute
}
