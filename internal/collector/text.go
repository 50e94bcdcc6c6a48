package collector

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 非“单词字符”（Unicode 字母、数字、下划线）的连续片段
var nonWordRun = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// NormalizeKey 去重用的标题键：转小写，非单词字符的连续片段折叠为一个空格
func NormalizeKey(s string) string {
	return nonWordRun.ReplaceAllString(strings.ToLower(s), " ")
}

// CollapseSpaces 把任意空白片段折叠为单个空格并去掉首尾空白
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RuneLen 按字符（rune）计数
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateRunes 按 rune 截断，避免截出半个字符
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if RuneLen(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
