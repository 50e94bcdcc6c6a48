package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Mixer 对合成好的语音做后期处理
type Mixer interface {
	PrependChime(ctx context.Context, speech []byte) ([]byte, error)
}

// ChimeSpec 片头提示音参数
type ChimeSpec struct {
	FrequencyHz int
	Tone        time.Duration
	Fade        time.Duration
	GainDB      float64
	Pad         time.Duration
	SampleRate  int
	Bitrate     string
}

// DefaultChime 880Hz 正弦波 500ms（淡入淡出各 50ms，-9dB），随后 150ms 静音，128k 导出
var DefaultChime = ChimeSpec{
	FrequencyHz: 880,
	Tone:        500 * time.Millisecond,
	Fade:        50 * time.Millisecond,
	GainDB:      -9,
	Pad:         150 * time.Millisecond,
	SampleRate:  22050,
	Bitrate:     "128k",
}

// FFmpegMixer 调用 ffmpeg 生成提示音并与语音拼接，语音通过 stdin 输入，结果从 stdout 读取
type FFmpegMixer struct {
	bin   string
	chime ChimeSpec
}

func NewFFmpegMixer(bin string, chime ChimeSpec) *FFmpegMixer {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegMixer{bin: bin, chime: chime}
}

func (m *FFmpegMixer) PrependChime(ctx context.Context, speech []byte) ([]byte, error) {
	if len(speech) == 0 {
		return nil, errors.New("audio: empty speech input")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.bin, m.args()...)
	cmd.Stdin = bytes.NewReader(speech)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("audio: ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("audio: ffmpeg produced no output")
	}

	log.Printf("audio: chime prepended, %d -> %d bytes", len(speech), stdout.Len())
	return stdout.Bytes(), nil
}

func (m *FFmpegMixer) args() []string {
	c := m.chime
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=%d:sample_rate=%d:duration=%s", c.FrequencyHz, c.SampleRate, seconds(c.Tone)),
		"-f", "lavfi", "-i", fmt.Sprintf("anullsrc=channel_layout=mono:sample_rate=%d", c.SampleRate),
		"-f", "mp3", "-i", "pipe:0",
		"-filter_complex", m.filterGraph(),
		"-map", "[out]",
		"-ac", "1",
		"-b:a", c.Bitrate,
		"-f", "mp3", "pipe:1",
	}
}

// filterGraph 提示音淡入淡出并衰减，静音截取固定时长，三段统一采样率后拼接
func (m *FFmpegMixer) filterGraph() string {
	c := m.chime
	format := fmt.Sprintf("aresample=%d,aformat=sample_fmts=fltp:channel_layouts=mono", c.SampleRate)
	return strings.Join([]string{
		fmt.Sprintf("[0:a]afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s,volume=%sdB,%s[tone]",
			seconds(c.Fade), seconds(c.Tone-c.Fade), seconds(c.Fade), trimFloat(c.GainDB), format),
		fmt.Sprintf("[1:a]atrim=duration=%s,%s[pad]", seconds(c.Pad), format),
		fmt.Sprintf("[2:a]%s[speech]", format),
		"[tone][pad][speech]concat=n=3:v=0:a=1[out]",
	}, ";")
}

func seconds(d time.Duration) string {
	return trimFloat(d.Seconds())
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", f), "0"), ".")
}
