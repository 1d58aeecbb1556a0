package media

import "errors"

var (
	// ErrStaging indicates a staged file could not be written to the temp root.
	ErrStaging = errors.New("media staging failed")
	// ErrTranscode indicates the audio transcoder failed.
	ErrTranscode = errors.New("media transcode failed")
	// ErrDownload indicates a remote media file could not be fetched.
	ErrDownload = errors.New("media download failed")
	// ErrFrameExtract indicates no frame could be decoded from a video.
	ErrFrameExtract = errors.New("video frame extraction failed")
	// ErrPathTraversal indicates a path resolves outside the temp root.
	ErrPathTraversal = errors.New("path escapes temp root")
)
