// Package render turns bot replies into gewechat API calls. Local media is
// staged under the temp root and handed to the gateway as a URL pointing back
// at the callback server.
package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gewebridge/pkg/gewechat"
	"gewebridge/pkg/logger"
	"gewebridge/pkg/media"
	"gewebridge/pkg/reply"

	"golang.org/x/time/rate"
)

const (
	DefaultSegmentDelimiter      = "//n"
	DefaultSegmentInterval       = 500 * time.Millisecond
	DefaultVideoFallbackDuration = 10
)

// Gateway is the subset of the gewechat client the renderer sends through.
type Gateway interface {
	PostText(ctx context.Context, appID, toWxid, content, ats string) (*gewechat.Response, error)
	PostImage(ctx context.Context, appID, toWxid, imgURL string) (*gewechat.Response, error)
	PostVoice(ctx context.Context, appID, toWxid, voiceURL string, durationMS int) (*gewechat.Response, error)
	PostVideo(ctx context.Context, appID, toWxid, videoURL, thumbURL string, durationSec int) (*gewechat.Response, error)
}

type Fetcher interface {
	Download(ctx context.Context, url, localPath string) error
}

// Target names who receives a reply. AtUser is mentioned on the first text
// segment only.
type Target struct {
	Receiver string
	AtUser   string
}

type Options struct {
	CallbackURL          string
	AppID                func() string
	SegmentDelimiter     string
	SegmentInterval      time.Duration
	VideoFallbackSeconds int
}

type Renderer struct {
	gateway     Gateway
	tmp         *media.TempDir
	transcoder  media.Transcoder
	frames      media.FrameExtractor
	fetcher     Fetcher
	callbackURL string
	appID       func() string
	delimiter   string
	interval    time.Duration
	fallbackSec int
}

func New(gateway Gateway, tmp *media.TempDir, transcoder media.Transcoder, frames media.FrameExtractor, fetcher Fetcher, opts Options) *Renderer {
	if opts.SegmentDelimiter == "" {
		opts.SegmentDelimiter = DefaultSegmentDelimiter
	}
	if opts.SegmentInterval < 0 {
		opts.SegmentInterval = 0
	}
	if opts.VideoFallbackSeconds <= 0 {
		opts.VideoFallbackSeconds = DefaultVideoFallbackDuration
	}
	if opts.AppID == nil {
		opts.AppID = func() string { return "" }
	}
	return &Renderer{
		gateway:     gateway,
		tmp:         tmp,
		transcoder:  transcoder,
		frames:      frames,
		fetcher:     fetcher,
		callbackURL: opts.CallbackURL,
		appID:       opts.AppID,
		delimiter:   opts.SegmentDelimiter,
		interval:    opts.SegmentInterval,
		fallbackSec: opts.VideoFallbackSeconds,
	}
}

// FetchURL is the address the gateway uses to pull a staged file back.
func (r *Renderer) FetchURL(path string) string {
	return r.callbackURL + "?file=" + url.QueryEscape(path)
}

// Render sends rep to target. Failures are logged, never returned. Once
// started a render runs to completion: cancellation of ctx is ignored, and
// gateway calls are bounded by the client timeouts instead.
func (r *Renderer) Render(ctx context.Context, rep reply.Reply, target Target) {
	ctx = context.WithoutCancel(ctx)
	if rep == nil {
		logger.WarnCF("render", "Nil reply ignored", map[string]interface{}{
			logger.FieldReceiver: target.Receiver,
		})
		return
	}

	switch v := rep.(type) {
	case reply.Text:
		r.sendText(ctx, v.Content, target)
	case reply.Error:
		r.sendText(ctx, v.Content, target)
	case reply.Info:
		r.sendText(ctx, v.Content, target)
	case reply.Voice:
		r.sendVoice(ctx, v.Path, target)
	case reply.ImageURL:
		r.sendImageURL(ctx, v.URL, target)
	case reply.Image:
		r.sendImage(ctx, v.Data, target)
	case reply.VideoURL:
		r.sendVideo(ctx, v.URL, target)
	default:
		logger.ErrorCF("render", "Unsupported reply kind", map[string]interface{}{
			logger.FieldContentType: fmt.Sprintf("%T", rep),
			logger.FieldReceiver:    target.Receiver,
		})
	}
}

// Segments splits content on the delimiter and drops blank pieces.
func Segments(content, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultSegmentDelimiter
	}
	var out []string
	for _, part := range strings.Split(content, delimiter) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *Renderer) sendText(ctx context.Context, content string, target Target) {
	segments := Segments(content, r.delimiter)
	if len(segments) == 0 {
		return
	}

	limit := rate.Inf
	if r.interval > 0 {
		limit = rate.Every(r.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, segment := range segments {
		if err := limiter.Wait(ctx); err != nil {
			logger.WarnCF("render", "Text send interrupted", map[string]interface{}{
				logger.FieldReceiver:     target.Receiver,
				logger.FieldSegmentIndex: i,
				logger.FieldSegmentTotal: len(segments),
				logger.FieldError:        err.Error(),
			})
			return
		}

		ats := ""
		if i == 0 {
			ats = target.AtUser
		}
		if _, err := r.gateway.PostText(ctx, r.appID(), target.Receiver, segment, ats); err != nil {
			logger.ErrorCF("render", "Failed to send text segment", map[string]interface{}{
				logger.FieldReceiver:     target.Receiver,
				logger.FieldSegmentIndex: i,
				logger.FieldSegmentTotal: len(segments),
				logger.FieldError:        err.Error(),
			})
			continue
		}
		logger.InfoCF("render", "Text segment sent", map[string]interface{}{
			logger.FieldReceiver:             target.Receiver,
			logger.FieldSegmentIndex:         i,
			logger.FieldSegmentTotal:         len(segments),
			logger.FieldMessageContentLength: len(segment),
		})
	}
}

func (r *Renderer) sendVoice(ctx context.Context, path string, target Target) {
	if !media.IsMP3(path) {
		logger.ErrorCF("render", "Voice reply must be an mp3 file", map[string]interface{}{
			logger.FieldPath:     path,
			logger.FieldReceiver: target.Receiver,
		})
		return
	}
	if r.transcoder == nil {
		logger.ErrorCF("render", "No voice transcoder configured", map[string]interface{}{
			logger.FieldPath: path,
		})
		return
	}

	silkPath := r.tmp.NewPath("voice", ".silk")
	durationMS, err := r.transcoder.Transcode(ctx, path, silkPath)
	if err != nil {
		logger.ErrorCF("render", "Voice transcode failed", map[string]interface{}{
			logger.FieldPath:     path,
			logger.FieldReceiver: target.Receiver,
			logger.FieldError:    err.Error(),
		})
		return
	}

	fetchURL := r.FetchURL(silkPath)
	if _, err := r.gateway.PostVoice(ctx, r.appID(), target.Receiver, fetchURL, durationMS); err != nil {
		logger.ErrorCF("render", "Failed to send voice", map[string]interface{}{
			logger.FieldURL:      fetchURL,
			logger.FieldReceiver: target.Receiver,
			logger.FieldError:    err.Error(),
		})
		return
	}
	logger.InfoCF("render", "Voice sent", map[string]interface{}{
		logger.FieldReceiver:   target.Receiver,
		logger.FieldDurationMS: durationMS,
	})
}

func (r *Renderer) sendImageURL(ctx context.Context, imgURL string, target Target) {
	if _, err := r.gateway.PostImage(ctx, r.appID(), target.Receiver, imgURL); err != nil {
		logger.ErrorCF("render", "Failed to send image", map[string]interface{}{
			logger.FieldURL:      imgURL,
			logger.FieldReceiver: target.Receiver,
			logger.FieldError:    err.Error(),
		})
		return
	}
	logger.InfoCF("render", "Image sent", map[string]interface{}{
		logger.FieldURL:      imgURL,
		logger.FieldReceiver: target.Receiver,
	})
}

func (r *Renderer) sendImage(ctx context.Context, data []byte, target Target) {
	path, err := r.tmp.Stage("img", ".png", data)
	if err != nil {
		logger.ErrorCF("render", "Failed to stage image", map[string]interface{}{
			logger.FieldReceiver: target.Receiver,
			logger.FieldError:    err.Error(),
		})
		return
	}
	r.sendImageURL(ctx, r.FetchURL(path), target)
}

func (r *Renderer) sendVideo(ctx context.Context, videoURL string, target Target) {
	if r.fetcher == nil {
		logger.ErrorCF("render", "No video downloader configured", map[string]interface{}{
			logger.FieldURL: videoURL,
		})
		return
	}

	videoPath := r.tmp.NewPath("video", ".mp4")
	if err := r.fetcher.Download(ctx, videoURL, videoPath); err != nil {
		logger.ErrorCF("render", "Video download failed", map[string]interface{}{
			logger.FieldURL:      videoURL,
			logger.FieldReceiver: target.Receiver,
			logger.FieldError:    err.Error(),
		})
		return
	}

	var frame media.Frame
	if r.frames != nil {
		f, err := r.frames.FirstFrame(ctx, videoPath)
		if err != nil {
			logger.WarnCF("render", "Frame extraction failed, using placeholder thumbnail", map[string]interface{}{
				logger.FieldPath:  videoPath,
				logger.FieldError: err.Error(),
			})
		} else {
			frame = f
		}
	}
	if len(frame.JPEG) == 0 {
		placeholder, err := media.PlaceholderJPEG()
		if err != nil {
			logger.ErrorCF("render", "Failed to build placeholder thumbnail", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			return
		}
		frame.JPEG = placeholder
	}

	thumbPath, err := r.tmp.Stage("thumb", ".jpg", frame.JPEG)
	if err != nil {
		logger.ErrorCF("render", "Failed to stage thumbnail", map[string]interface{}{
			logger.FieldPath:  videoPath,
			logger.FieldError: err.Error(),
		})
		return
	}

	duration := frame.DurationSeconds(r.fallbackSec)
	if _, err := r.gateway.PostVideo(ctx, r.appID(), target.Receiver, videoURL, r.FetchURL(thumbPath), duration); err != nil {
		logger.ErrorCF("render", "Failed to send video", map[string]interface{}{
			logger.FieldURL:      videoURL,
			logger.FieldReceiver: target.Receiver,
			logger.FieldError:    err.Error(),
		})
		return
	}
	logger.InfoCF("render", "Video sent", map[string]interface{}{
		logger.FieldURL:      videoURL,
		logger.FieldReceiver: target.Receiver,
		"duration_sec":       duration,
	})
}
