package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"gewebridge/pkg/filter"
	"gewebridge/pkg/message"

	"github.com/prometheus/client_golang/prometheus"
)

type countingFilter struct {
	mu      sync.Mutex
	calls   int
	verdict filter.Verdict
}

func (f *countingFilter) Evaluate(*message.Message) filter.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.verdict
}

type countingSink struct {
	mu   sync.Mutex
	msgs []*message.Message
	err  error
}

func (s *countingSink) Submit(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return s.err
}

const callbackPath = "/v2/api/callback/collect"

func newTestServer(t *testing.T, h Handler) (*Server, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "tmp")
	s, err := New(Options{Addr: "127.0.0.1:0", Path: callbackPath, TempRoot: root}, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, s.TempDir().Root()
}

func doRequest(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func fileURL(path string) string {
	return callbackPath + "?file=" + url.QueryEscape(path)
}

func TestGetLiveness(t *testing.T) {
	s, _ := newTestServer(t, NewInbound(&countingFilter{}, &countingSink{}))
	rec := doRequest(t, s, http.MethodGet, callbackPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Body.String() != "gewechat callback server is running" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestGetServesStagedFileExactly(t *testing.T) {
	s, root := newTestServer(t, NewInbound(&countingFilter{}, &countingSink{}))
	want := []byte{0x00, 0x01, 0xff, 'a', '\n', 0x7f}
	path, err := s.TempDir().Stage("img", ".png", want)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !strings.HasPrefix(path, root) {
		t.Fatalf("staged outside root: %s", path)
	}

	rec := doRequest(t, s, http.MethodGet, fileURL(path), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), want) {
		t.Fatalf("body mismatch: %v", rec.Body.Bytes())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}
}

func TestGetForbidsPathsOutsideRoot(t *testing.T) {
	s, root := newTestServer(t, NewInbound(&countingFilter{}, &countingSink{}))

	sibling := root + "-evil"
	if err := os.MkdirAll(sibling, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	secret := filepath.Join(sibling, "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, raw := range []string{
		"../../etc/passwd",
		"/etc/passwd",
		filepath.Join(root, "..", "..", "etc", "passwd"),
		secret,
	} {
		rec := doRequest(t, s, http.MethodGet, fileURL(raw), nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%q: expected 403, got %d", raw, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "top secret") || strings.Contains(rec.Body.String(), "root:") {
			t.Fatalf("%q: file contents leaked", raw)
		}
	}
}

func TestGetMissingFileAndDirectory(t *testing.T) {
	s, root := newTestServer(t, NewInbound(&countingFilter{}, &countingSink{}))
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, raw := range []string{filepath.Join(root, "missing.jpg"), filepath.Join(root, "sub"), root} {
		rec := doRequest(t, s, http.MethodGet, fileURL(raw), nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%q: expected 404, got %d", raw, rec.Code)
		}
	}
}

func TestResolveFileReportsForbidden(t *testing.T) {
	s, _ := newTestServer(t, NewInbound(&countingFilter{}, &countingSink{}))
	if _, err := s.resolveFile("/etc/passwd"); !errors.Is(err, ErrForbiddenPath) {
		t.Fatalf("expected ErrForbiddenPath, got %v", err)
	}
}

func TestPostSelfTestSkipsPipeline(t *testing.T) {
	f := &countingFilter{verdict: filter.Forward}
	sink := &countingSink{}
	s, _ := newTestServer(t, NewInbound(f, sink))

	rec := doRequest(t, s, http.MethodPost, callbackPath, []byte(`{"testMsg": "x", "token": "y"}`))
	if rec.Code != http.StatusOK || rec.Body.String() != "success" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
	if f.calls != 0 || len(sink.msgs) != 0 {
		t.Fatalf("self-test reached the pipeline: filter=%d sink=%d", f.calls, len(sink.msgs))
	}
}

func chatBody(createTime int64) []byte {
	return []byte(`{"TypeName":"AddMsg","Appid":"wx_app","Wxid":"wxid_bot","Data":{"MsgId":1,` +
		`"FromUserName":{"string":"wxid_alice"},"ToUserName":{"string":"wxid_bot"},"MsgType":1,` +
		`"Content":{"string":"hello"},"CreateTime":` + strconv.FormatInt(createTime, 10) + `,"MsgSource":""}}`)
}

func TestPostForwardAndDropBothAcknowledge(t *testing.T) {
	tests := []struct {
		name      string
		verdict   filter.Verdict
		forwarded int
	}{
		{name: "forward", verdict: filter.Forward, forwarded: 1},
		{name: "drop", verdict: filter.DropExpired, forwarded: 0},
		{name: "drop self echo", verdict: filter.DropSelfEcho, forwarded: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &countingFilter{verdict: tt.verdict}
			sink := &countingSink{}
			s, _ := newTestServer(t, NewInbound(f, sink))

			rec := doRequest(t, s, http.MethodPost, callbackPath, chatBody(time.Now().Unix()))
			if rec.Code != http.StatusOK || rec.Body.String() != "success" {
				t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
			}
			if f.calls != 1 {
				t.Fatalf("expected 1 filter call, got %d", f.calls)
			}
			if len(sink.msgs) != tt.forwarded {
				t.Fatalf("expected %d forwarded, got %d", tt.forwarded, len(sink.msgs))
			}
		})
	}
}

func TestPostSinkFailureStillAcknowledges(t *testing.T) {
	sink := &countingSink{err: errors.New("queue full")}
	s, _ := newTestServer(t, NewInbound(&countingFilter{verdict: filter.Forward}, sink))

	rec := doRequest(t, s, http.MethodPost, callbackPath, chatBody(time.Now().Unix()))
	if rec.Code != http.StatusOK || rec.Body.String() != "success" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestPostIgnoredTypeName(t *testing.T) {
	f := &countingFilter{}
	s, _ := newTestServer(t, NewInbound(f, &countingSink{}))

	rec := doRequest(t, s, http.MethodPost, callbackPath, []byte(`{"TypeName":"ModContacts","Appid":"wx_app","Data":{}}`))
	if rec.Code != http.StatusOK || rec.Body.String() != "success" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
	if f.calls != 0 {
		t.Fatalf("ignored notification reached the filter")
	}
}

func TestPostInvalidPayloads(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"TypeName":"AddMsg","Data":{"MsgType":1}}`,
		`{"TypeName":"AddMsg"}`,
	} {
		f := &countingFilter{}
		sink := &countingSink{}
		s, _ := newTestServer(t, NewInbound(f, sink))

		rec := doRequest(t, s, http.MethodPost, callbackPath, []byte(body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, rec.Code)
		}
		if rec.Body.String() != invalidPayloadBody {
			t.Fatalf("%q: unexpected body %q", body, rec.Body.String())
		}
		if len(sink.msgs) != 0 {
			t.Fatalf("%q: malformed payload was forwarded", body)
		}
	}
}

func TestOtherMethodsNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, NewInbound(&countingFilter{}, &countingSink{}))
	rec := doRequest(t, s, http.MethodDelete, callbackPath, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gewebridge_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s, err := New(Options{Path: callbackPath, TempRoot: t.TempDir(), MetricsPath: "/metrics", Metrics: reg}, HandlerFunc(func(context.Context, []byte) error { return nil }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := doRequest(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gewebridge_test_total 1") {
		t.Fatalf("unexpected metrics response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStartReadyStop(t *testing.T) {
	s, _ := newTestServer(t, HandlerFunc(func(context.Context, []byte) error { return nil }))
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatalf("server never became ready")
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + callbackPath)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "gewechat callback server is running" {
		t.Fatalf("unexpected body: %q", body)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("expected no address after stop")
	}
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	body := []byte(strings.Repeat("中", 250))
	got := preview(body)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8")
	}
	if !strings.HasSuffix(got, "...") || utf8.RuneCountInString(strings.TrimSuffix(got, "...")) != 200 {
		t.Fatalf("unexpected preview length %d runes", utf8.RuneCountInString(got))
	}
	if short := preview([]byte("你好")); short != "你好" {
		t.Fatalf("short body changed: %q", short)
	}
}
