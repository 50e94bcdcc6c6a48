package processor

import "strings"

// Bucket 编辑栏目
type Bucket string

const (
	BucketCivic   Bucket = "civic"
	BucketCulture Bucket = "culture"
	BucketWeather Bucket = "weather"
)

// WeatherKeyword 名称包含该词的数据源只用于天气
const WeatherKeyword = "weather"

// Classifier 根据数据源名称决定其栏目
type Classifier func(sourceName string) Bucket

// KeywordClassifier 大小写不敏感的子串匹配：先判断天气，再判断市政关键词，其余归入文化
func KeywordClassifier(civicKeywords []string) Classifier {
	keys := make([]string, 0, len(civicKeywords))
	for _, k := range civicKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keys = append(keys, k)
		}
	}

	return func(sourceName string) Bucket {
		name := strings.ToLower(sourceName)
		if strings.Contains(name, WeatherKeyword) {
			return BucketWeather
		}
		for _, k := range keys {
			if strings.Contains(name, k) {
				return BucketCivic
			}
		}
		return BucketCulture
	}
}
