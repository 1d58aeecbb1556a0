package main

import (
	"reflect"
	"testing"

	"gewebridge/pkg/reply"
)

func TestNormalizeCLIArgsStripsGlobalFlags(t *testing.T) {
	t.Parallel()

	got := normalizeCLIArgs([]string{"gewebridge", "--debug", "send", "--config", "/tmp/c.json", "--to", "wxid_a", "--config=/x", "hi"})
	want := []string{"gewebridge", "send", "--to", "wxid_a", "hi"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if path := detectConfigPathFromArgs([]string{"gewebridge", "--config=/etc/g.json"}); path != "/etc/g.json" {
		t.Fatalf("unexpected config path %q", path)
	}
}

func TestFlagValues(t *testing.T) {
	t.Parallel()

	values, rest := flagValues([]string{"--to", "123@chatroom", "hello", "--at", "wxid_a", "world", "--kind"}, "--to", "--at", "--kind")
	if values["--to"] != "123@chatroom" || values["--at"] != "wxid_a" {
		t.Fatalf("unexpected values: %v", values)
	}
	if _, ok := values["--kind"]; ok {
		t.Fatalf("dangling flag should not take a value")
	}
	if !reflect.DeepEqual(rest, []string{"hello", "world", "--kind"}) {
		t.Fatalf("unexpected rest: %v", rest)
	}
}

func TestBuildReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind string
		want reply.Reply
	}{
		{kind: "", want: reply.Text{Content: "x"}},
		{kind: "info", want: reply.Info{Content: "x"}},
		{kind: "image_url", want: reply.ImageURL{URL: "x"}},
		{kind: "video_url", want: reply.VideoURL{URL: "x"}},
		{kind: "voice", want: reply.Voice{Path: "x"}},
	}
	for _, tt := range tests {
		got, err := buildReply(tt.kind, "x")
		if err != nil {
			t.Fatalf("kind %q: %v", tt.kind, err)
		}
		if got != tt.want {
			t.Fatalf("kind %q: got %#v", tt.kind, got)
		}
	}
	if _, err := buildReply("sticker", "x"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
