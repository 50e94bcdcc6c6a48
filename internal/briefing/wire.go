package briefing

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/LJTian/DailyBriefing/internal/audio"
	"github.com/LJTian/DailyBriefing/internal/collector"
	"github.com/LJTian/DailyBriefing/internal/config"
	"github.com/LJTian/DailyBriefing/internal/publish"
	"github.com/LJTian/DailyBriefing/internal/speech"
)

// Build 按配置组装生产环境的 Runner：HTTP 抓取、Polly、ffmpeg、S3。
// recorder 可为 nil（未配置 POSTGRES_DSN 时不记录历史）。
func Build(ctx context.Context, cfg *config.Config, recorder Recorder) (*Runner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("briefing: load aws config: %w", err)
	}

	uploader, err := publish.NewS3Uploader(awsCfg, cfg.S3Bucket)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Fetcher:  collector.NewMultiFetcher(collector.DefaultTimeout),
		Speech:   speech.NewPollySynthesizer(awsCfg, cfg.PollyVoice),
		Mixer:    audio.NewFFmpegMixer(cfg.FFmpegPath, audio.DefaultChime),
		Uploader: uploader,
		Recorder: recorder,
		Now:      config.Now,
	}
	return NewRunner(cfg, deps), nil
}
