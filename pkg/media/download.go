package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultDownloadTimeout = 60 * time.Second
	browserUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

type Downloader struct {
	client *http.Client
}

func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return &Downloader{client: &http.Client{Timeout: timeout}}
}

// Download streams url into localPath. A partially written file is removed.
func (d *Downloader) Download(ctx context.Context, url, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStaging, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(localPath)
		return fmt.Errorf("%w: write %s: %v", ErrDownload, localPath, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("%w: %v", ErrStaging, err)
	}
	return nil
}
