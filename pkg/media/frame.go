package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"strconv"
	"strings"
)

const (
	placeholderWidth  = 480
	placeholderHeight = 270
	thumbnailQuality  = 95
)

// Frame is the first decodable frame of a video plus what is known about
// its length. FrameCount and FPS are zero when unknown.
type Frame struct {
	JPEG       []byte
	FrameCount int
	FPS        float64
}

// DurationSeconds returns FrameCount/FPS, or fallback when either is unknown.
func (f Frame) DurationSeconds(fallback int) int {
	if f.FPS <= 0 || f.FrameCount <= 0 {
		return fallback
	}
	return int(float64(f.FrameCount) / f.FPS)
}

type FrameExtractor interface {
	FirstFrame(ctx context.Context, videoPath string) (Frame, error)
}

// ExecFrameExtractor grabs the first frame with ffmpeg and reads frame count
// and rate with ffprobe.
type ExecFrameExtractor struct {
	FFmpeg  string
	FFprobe string
}

func NewExecFrameExtractor(ffmpeg, ffprobe string) *ExecFrameExtractor {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &ExecFrameExtractor{FFmpeg: ffmpeg, FFprobe: ffprobe}
}

func (e *ExecFrameExtractor) FirstFrame(ctx context.Context, videoPath string) (Frame, error) {
	out, err := os.CreateTemp("", "frame_*.jpg")
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrFrameExtract, err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := []string{e.FFmpeg, "-y", "-v", "error", "-i", videoPath, "-frames:v", "1", "-q:v", "2", outPath}
	if _, err := run(ctx, args); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrFrameExtract, err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil || len(data) == 0 {
		return Frame{}, fmt.Errorf("%w: no frame written", ErrFrameExtract)
	}

	frame := Frame{JPEG: data}
	// Length is best effort; a failed stream query only loses the duration.
	if count, fps, err := e.streamInfo(ctx, videoPath); err == nil {
		frame.FrameCount = count
		frame.FPS = fps
	}
	return frame, nil
}

func (e *ExecFrameExtractor) streamInfo(ctx context.Context, videoPath string) (int, float64, error) {
	out, err := run(ctx, []string{
		e.FFprobe, "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=nb_frames,r_frame_rate", "-of", "json", videoPath,
	})
	if err != nil {
		return 0, 0, err
	}
	return parseStreamInfo(out)
}

func parseStreamInfo(out []byte) (int, float64, error) {
	var result struct {
		Streams []struct {
			NbFrames   string `json:"nb_frames"`
			RFrameRate string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return 0, 0, err
	}
	if len(result.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video stream")
	}
	s := result.Streams[0]
	count, _ := strconv.Atoi(strings.TrimSpace(s.NbFrames))
	return count, parseRate(s.RFrameRate), nil
}

// parseRate reads ffprobe rates like "30000/1001" or "25".
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// PlaceholderJPEG renders the black 480x270 thumbnail used when no frame
// can be extracted.
func PlaceholderJPEG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
