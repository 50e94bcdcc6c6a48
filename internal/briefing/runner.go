package briefing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/LJTian/DailyBriefing/internal/audio"
	"github.com/LJTian/DailyBriefing/internal/collector"
	"github.com/LJTian/DailyBriefing/internal/config"
	"github.com/LJTian/DailyBriefing/internal/processor"
	"github.com/LJTian/DailyBriefing/internal/publish"
	"github.com/LJTian/DailyBriefing/internal/speech"
	"github.com/LJTian/DailyBriefing/internal/storage"
)

// ErrRunInProgress 上一轮生成尚未结束
var ErrRunInProgress = errors.New("briefing: a run is already in progress")

// Recorder 保存已发布简报的历史记录
type Recorder interface {
	SaveBriefing(ctx context.Context, b *storage.Briefing) error
}

// Deps 一轮生成依赖的外部协作者，Recorder 可为空
type Deps struct {
	Fetcher  collector.Fetcher
	Speech   speech.Synthesizer
	Mixer    audio.Mixer
	Uploader publish.Uploader
	Recorder Recorder
	Now      func() time.Time
}

// SourceStat 单个数据源在本轮中的情况
type SourceStat struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Bucket string `json:"bucket"`
	Items  int    `json:"items"`
	Error  string `json:"error,omitempty"`
}

type Stats struct {
	Sources           int           `json:"sources"`
	FailedSources     int           `json:"failedSources"`
	CivicItems        int           `json:"civicItems"`
	CultureItems      int           `json:"cultureItems"`
	HasWeather        bool          `json:"hasWeather"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	PerSource         []SourceStat  `json:"perSource"`
}

// Outcome 一轮生成的产物
type Outcome struct {
	Script    string
	ObjectKey string
	StreamURL string
	Feed      publish.FeedRecord
	Stats     Stats
}

type Runner struct {
	cfg      *config.Config
	deps     Deps
	classify processor.Classifier
	weather  processor.WeatherExtractor
	script   processor.ScriptBuilder

	mu sync.Mutex
}

func NewRunner(cfg *config.Config, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = config.Now
	}
	return &Runner{
		cfg:      cfg,
		deps:     deps,
		classify: processor.KeywordClassifier(cfg.CivicKeywords),
		weather:  processor.WeatherExtractor{ParseFields: cfg.Weather.ParseFields},
		script:   processor.NewScriptBuilder(cfg.Host.Opening, cfg.Host.Closing),
	}
}

// Run 抓取、整理、合成、上传并发布一期简报。同一时间只允许一轮在执行。
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	now := r.deps.Now()
	log.Printf("start briefing job, %d sources...", len(r.cfg.Sources))

	script, stats := r.compose(ctx)
	if stats.EstimatedDuration > r.cfg.TargetDuration() {
		log.Printf("warn: script runs about %s, over target %s", stats.EstimatedDuration.Round(time.Second), r.cfg.TargetDuration())
	}

	speechAudio, err := r.deps.Speech.Synthesize(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("briefing: synthesize: %w", err)
	}
	final, err := r.deps.Mixer.PrependChime(ctx, speechAudio)
	if err != nil {
		return nil, fmt.Errorf("briefing: mix: %w", err)
	}

	key := publish.ObjectKey(r.cfg.S3Prefix, r.cfg.UseLatestAlias, r.cfg.LatestFilename, r.cfg.DatedFilenameTemplate, now)
	url, err := r.deps.Uploader.Upload(ctx, final, key)
	if err != nil {
		return nil, fmt.Errorf("briefing: upload: %w", err)
	}

	feed := publish.FeedRecord{
		UID:            publish.FeedUID(r.cfg.Feed.UIDPrefix, r.cfg.UseLatestAlias, now),
		UpdateDate:     publish.FormatUpdateDate(now),
		TitleText:      r.cfg.Feed.Title,
		MainText:       "",
		StreamURL:      url,
		RedirectionURL: r.cfg.Feed.RedirectionURL,
	}
	if err := publish.WriteFeed(r.cfg.Feed.Path, []publish.FeedRecord{feed}); err != nil {
		return nil, fmt.Errorf("briefing: %w", err)
	}
	if err := publish.WriteScript(r.cfg.Feed.ScriptPath, script); err != nil {
		return nil, fmt.Errorf("briefing: %w", err)
	}

	out := &Outcome{Script: script, ObjectKey: key, StreamURL: url, Feed: feed, Stats: stats}
	r.record(ctx, now, out)

	log.Printf("briefing job done, published %s (civic=%d culture=%d failed=%d)",
		url, stats.CivicItems, stats.CultureItems, stats.FailedSources)
	return out, nil
}

// compose 顺序抓取所有数据源并生成口播稿
func (r *Runner) compose(ctx context.Context) (string, Stats) {
	var (
		civicPool, culturePool []collector.Item
		weatherText            string
		stats                  = Stats{Sources: len(r.cfg.Sources)}
	)

	for _, src := range r.cfg.Sources {
		res := r.deps.Fetcher.Fetch(ctx, src)
		bucket := r.classify(src.Name)

		st := SourceStat{Name: src.Name, Type: string(src.Kind()), Bucket: string(bucket)}
		if res.OK() {
			st.Items = len(res.Items)
		} else {
			st.Error = res.Err.Error()
			stats.FailedSources++
		}
		stats.PerSource = append(stats.PerSource, st)

		switch bucket {
		case processor.BucketWeather:
			// 只看第一条的 desc；失败占位条目的 desc 为空
			if len(res.Items) > 0 && strings.TrimSpace(res.Items[0].Desc) != "" {
				weatherText = r.weather.Extract(res.Items[0].Desc)
			}
		case processor.BucketCivic:
			civicPool = append(civicPool, res.Headlines(r.cfg.ReciteFetchErrors)...)
		default:
			culturePool = append(culturePool, res.Headlines(r.cfg.ReciteFetchErrors)...)
		}
	}

	civic := processor.Compress(civicPool, r.cfg.CompressLimit)
	culture := processor.Compress(culturePool, r.cfg.CompressLimit)

	script := r.script.Build(weatherText, civic, culture)

	stats.CivicItems = len(civic)
	stats.CultureItems = len(culture)
	stats.HasWeather = weatherText != ""
	stats.EstimatedDuration = processor.EstimateDuration(script)
	return script, stats
}

// record 音频已经发布，历史记录写入失败只打日志
func (r *Runner) record(ctx context.Context, now time.Time, out *Outcome) {
	if r.deps.Recorder == nil {
		return
	}

	perSource := make(map[string]any, len(out.Stats.PerSource))
	for _, st := range out.Stats.PerSource {
		entry := map[string]any{"type": st.Type, "bucket": st.Bucket, "items": st.Items}
		if st.Error != "" {
			entry["error"] = st.Error
		}
		perSource[st.Name] = entry
	}

	b := &storage.Briefing{
		BriefingDate:   publish.DateStamp(now),
		FeedUID:        out.Feed.UID,
		Title:          out.Feed.TitleText,
		ObjectKey:      out.ObjectKey,
		StreamURL:      out.StreamURL,
		RedirectionURL: out.Feed.RedirectionURL,
		Script:         out.Script,
		CivicCount:     out.Stats.CivicItems,
		CultureCount:   out.Stats.CultureItems,
		FailedSources:  out.Stats.FailedSources,
		SourceStats:    perSource,
		PublishedAt:    now,
	}
	if err := r.deps.Recorder.SaveBriefing(ctx, b); err != nil {
		log.Printf("save briefing history error: %v", err)
	}
}
