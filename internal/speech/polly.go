package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// Polly 单次请求最多 3000 个计费字符
const pollyMaxChars = 3000

// Synthesizer 把口播稿转换为 MP3 音频
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// pollyAPI 只声明用到的方法，方便测试替换
type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer 先用 neural 引擎合成，失败后改用 standard 引擎重试一次
type PollySynthesizer struct {
	client pollyAPI
	voice  string
}

func NewPollySynthesizer(cfg aws.Config, voice string) *PollySynthesizer {
	return newPollySynthesizer(polly.NewFromConfig(cfg), voice)
}

func newPollySynthesizer(client pollyAPI, voice string) *PollySynthesizer {
	if voice == "" {
		voice = "Joanna"
	}
	return &PollySynthesizer{client: client, voice: voice}
}

func (p *PollySynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	chunks := SplitText(text, pollyMaxChars)
	if len(chunks) == 0 {
		return nil, errors.New("speech: empty script")
	}

	log.Printf("speech: synthesizing %d characters in %d request(s), voice=%s", len(text), len(chunks), p.voice)
	start := time.Now()

	// MP3 帧可以直接首尾拼接
	var buf bytes.Buffer
	for i, chunk := range chunks {
		audio, err := p.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("speech: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		buf.Write(audio)
	}

	log.Printf("speech: done, %d bytes in %.2fs", buf.Len(), time.Since(start).Seconds())
	return buf.Bytes(), nil
}

func (p *PollySynthesizer) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	audio, err := p.request(ctx, text, types.EngineNeural)
	if err == nil {
		return audio, nil
	}
	log.Printf("speech: neural engine failed, retrying with standard: %v", err)

	audio, err = p.request(ctx, text, types.EngineStandard)
	if err != nil {
		return nil, fmt.Errorf("standard engine: %w", err)
	}
	return audio, nil
}

func (p *PollySynthesizer) request(ctx context.Context, text string, engine types.Engine) ([]byte, error) {
	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(p.voice),
		Engine:       engine,
		OutputFormat: types.OutputFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read audio stream: %w", err)
	}
	return audio, nil
}
