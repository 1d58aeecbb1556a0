package server

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"

	"gewebridge/pkg/logger"
	"gewebridge/pkg/media"
	"gewebridge/pkg/message"
)

var (
	ErrForbiddenPath = errors.New("path outside temp root")
	errFileNotFound  = errors.New("file not found")
)

const invalidPayloadBody = `{"ret":400,"msg":"invalid callback payload"}`

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("file")
	if raw == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, s.opts.ServiceName+" callback server is running")
		return
	}

	path, err := s.resolveFile(raw)
	switch {
	case errors.Is(err, ErrForbiddenPath):
		logger.ErrorCF("server", "Refused file outside temp root", map[string]interface{}{
			logger.FieldPath: raw,
			"resolved":       path,
			"temp_root":      s.tmp.Root(),
		})
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case errors.Is(err, errFileNotFound):
		http.Error(w, "file not found", http.StatusNotFound)
		return
	case err != nil:
		logger.ErrorCF("server", "Failed to resolve file", map[string]interface{}{
			logger.FieldPath:  raw,
			logger.FieldError: err.Error(),
		})
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, f)
	if err != nil {
		logger.WarnCF("server", "File transfer interrupted", map[string]interface{}{
			logger.FieldPath:  path,
			logger.FieldError: err.Error(),
		})
		return
	}
	logger.DebugCF("server", "Served staged file", map[string]interface{}{
		logger.FieldPath: path,
		"bytes":          n,
	})
}

// resolveFile maps the file query value to a regular file inside the temp
// root.
func (s *Server) resolveFile(raw string) (string, error) {
	path, err := s.tmp.Resolve(raw)
	if err != nil {
		if errors.Is(err, media.ErrPathTraversal) {
			return path, ErrForbiddenPath
		}
		return path, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, errFileNotFound
		}
		return path, err
	}
	if info.IsDir() {
		return path, errFileNotFound
	}
	return path, nil
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		logger.WarnCF("server", "Failed to read callback body", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		writeInvalidPayload(w)
		return
	}

	err = s.handler.HandleCallback(r.Context(), body)
	switch {
	case errors.Is(err, message.ErrInvalidJSON), errors.Is(err, message.ErrMalformedPayload):
		logger.WarnCF("server", "Rejected callback payload", map[string]interface{}{
			logger.FieldError:   err.Error(),
			logger.FieldPreview: preview(body),
		})
		writeInvalidPayload(w)
		return
	case err != nil:
		logger.ErrorCF("server", "Callback handling failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "success")
}

func writeInvalidPayload(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, invalidPayloadBody)
}

func preview(body []byte) string {
	const max = 200
	r := []rune(string(body))
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return string(r)
}
