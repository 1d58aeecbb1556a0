package media

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Transcoder converts a local audio file into the gateway's voice codec and
// reports the duration in milliseconds.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) (int, error)
}

// DefaultVoiceSteps decode to raw PCM with ffmpeg, then encode silk v3.
var DefaultVoiceSteps = [][]string{
	{"ffmpeg", "-y", "-v", "error", "-i", "{in}", "-f", "s16le", "-ar", "{rate}", "-ac", "1", "{pcm}"},
	{"silk_v3_encoder", "{pcm}", "{out}", "-tencent", "-Fs_API", "{rate}"},
}

const DefaultVoiceSampleRate = 24000

// ExecTranscoder runs a sequence of external commands. Placeholders:
// {in}, {out}, {pcm} (intermediate 16-bit mono PCM) and {rate}.
type ExecTranscoder struct {
	Steps      [][]string
	SampleRate int
}

func NewExecTranscoder(steps [][]string, sampleRate int) *ExecTranscoder {
	if len(steps) == 0 {
		steps = DefaultVoiceSteps
	}
	if sampleRate <= 0 {
		sampleRate = DefaultVoiceSampleRate
	}
	return &ExecTranscoder{Steps: steps, SampleRate: sampleRate}
}

func (t *ExecTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) (int, error) {
	pcmPath := outputPath + ".pcm"
	defer os.Remove(pcmPath)

	vars := map[string]string{
		"in":   inputPath,
		"out":  outputPath,
		"pcm":  pcmPath,
		"rate": fmt.Sprintf("%d", t.SampleRate),
	}
	for _, step := range t.Steps {
		if _, err := run(ctx, expand(step, vars)); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTranscode, err)
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return 0, fmt.Errorf("%w: output missing: %v", ErrTranscode, err)
	}
	return pcmDurationMS(pcmPath, t.SampleRate), nil
}

// pcmDurationMS derives playback length from 16-bit mono PCM size.
func pcmDurationMS(path string, sampleRate int) int {
	info, err := os.Stat(path)
	if err != nil || sampleRate <= 0 {
		return 0
	}
	return int(info.Size() * 1000 / int64(sampleRate*2))
}

// IsMP3 reports whether path names an mp3 file.
func IsMP3(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".mp3")
}
