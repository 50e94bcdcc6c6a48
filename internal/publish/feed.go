package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// 秒后固定追加字面量 ".0Z"；布局里的 ".0" 会被当作小数秒，不能直接写进去
const feedTimeLayout = "2006-01-02T15:04:05"

// FeedRecord 简报订阅 JSON 中的一条记录
type FeedRecord struct {
	UID            string `json:"uid"`
	UpdateDate     string `json:"updateDate"`
	TitleText      string `json:"titleText"`
	MainText       string `json:"mainText"`
	StreamURL      string `json:"streamUrl"`
	RedirectionURL string `json:"redirectionUrl"`
}

// FormatUpdateDate 转为 UTC 后按订阅格式输出
func FormatUpdateDate(t time.Time) string {
	return t.UTC().Format(feedTimeLayout) + ".0Z"
}

// DateStamp UTC 日期，用于文件名与 uid
func DateStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ObjectKey 使用 latest 别名时固定覆盖同一个对象，否则按日期模板命名
func ObjectKey(prefix string, useLatest bool, latestName, datedTemplate string, now time.Time) string {
	name := latestName
	if !useLatest {
		name = strings.ReplaceAll(datedTemplate, "{date}", DateStamp(now))
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// FeedUID 与对象命名方式保持一致
func FeedUID(uidPrefix string, useLatest bool, now time.Time) string {
	if useLatest {
		return uidPrefix + "-latest"
	}
	return uidPrefix + "-" + DateStamp(now)
}

// WriteFeed 以两空格缩进写出 JSON 数组
func WriteFeed(path string, records []FeedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("publish: marshal feed: %w", err)
	}
	return writeFile(path, data)
}

// WriteScript 原样保存口播稿，便于审阅
func WriteScript(path, script string) error {
	return writeFile(path, []byte(script))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("publish: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("publish: write %s: %w", path, err)
	}
	return nil
}
