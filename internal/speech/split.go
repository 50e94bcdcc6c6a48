package speech

import (
	"strings"
	"unicode/utf8"
)

// SplitText 按句子切分文本，每段不超过 limit 个字符；
// 单句超长时按单词切分，单词仍超长时按字符硬切。
func SplitText(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || limit <= 0 {
		return nil
	}

	var (
		chunks []string
		cur    []string
		curLen int
	)
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
			cur, curLen = nil, 0
		}
	}
	add := func(piece string) {
		n := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		if curLen > 0 {
			curLen++
		}
		cur = append(cur, piece)
		curLen += n
	}

	for _, sentence := range sentences(words) {
		if utf8.RuneCountInString(sentence) <= limit {
			add(sentence)
			continue
		}
		for _, w := range strings.Fields(sentence) {
			for _, piece := range hardSplit(w, limit) {
				add(piece)
			}
		}
	}
	flush()
	return chunks
}

// sentences 以 . ! ? 结尾的单词作为句子边界
func sentences(words []string) []string {
	var (
		out []string
		cur []string
	)
	for _, w := range words {
		cur = append(cur, w)
		if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

func hardSplit(word string, limit int) []string {
	rs := []rune(word)
	if len(rs) <= limit {
		return []string{word}
	}
	var out []string
	for len(rs) > limit {
		out = append(out, string(rs[:limit]))
		rs = rs[limit:]
	}
	if len(rs) > 0 {
		out = append(out, string(rs))
	}
	return out
}
