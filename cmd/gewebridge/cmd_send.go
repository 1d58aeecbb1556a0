package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gewebridge/pkg/bus"
	"gewebridge/pkg/channels"
	"gewebridge/pkg/reply"
)

func sendHelp() {
	fmt.Println("\nUsage: gewebridge send --to <wxid> [--at <wxid>] [--kind text|image_url|video_url|voice] <content>")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  gewebridge send --to wxid_abc 'hello//nworld'")
	fmt.Println("  gewebridge send --to 123@chatroom --at wxid_abc 'hi there'")
	fmt.Println("  gewebridge send --to wxid_abc --kind image_url https://example.com/cat.png")
	fmt.Println("  gewebridge send --to wxid_abc --kind voice ./reply.mp3")
}

// sendCmd renders one reply without starting the callback listener. Media
// replies need a running gateway, since the gateway fetches staged files
// through the callback url.
func sendCmd() {
	values, rest := flagValues(os.Args[2:], "--to", "--at", "--kind")
	to := values["--to"]
	content := strings.TrimSpace(strings.Join(rest, " "))
	if to == "" || content == "" {
		sendHelp()
		return
	}

	r, err := buildReply(values["--kind"], content)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		sendHelp()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if token, appID := cfg.Credentials(); token == "" || appID == "" {
		fmt.Println("Error: not logged in, run `gewebridge login` first")
		os.Exit(1)
	}

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()
	gw, err := channels.NewGeWeChatChannel(cfg, "", msgBus, channels.GeWeChatDeps{})
	if err != nil {
		fmt.Printf("Error creating channel: %v\n", err)
		os.Exit(1)
	}
	mgr := channels.NewManager(msgBus)
	mgr.RegisterChannel(gw)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Sending %s to %s...\n", r.Kind(), to)
	if err := mgr.SendToChannel(ctx, channels.ChannelGeWeChat, to, values["--at"], r); err != nil {
		fmt.Printf("✗ Failed to send: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Reply rendered (check the log for per-call errors)")
}

func buildReply(kind, content string) (reply.Reply, error) {
	switch reply.Kind(kind) {
	case "", reply.KindText:
		return reply.Text{Content: content}, nil
	case reply.KindInfo:
		return reply.Info{Content: content}, nil
	case reply.KindError:
		return reply.Error{Content: content}, nil
	case reply.KindImageURL:
		return reply.ImageURL{URL: content}, nil
	case reply.KindVideoURL:
		return reply.VideoURL{URL: content}, nil
	case reply.KindVoice:
		return reply.Voice{Path: content}, nil
	case reply.KindImage:
		data, err := os.ReadFile(content)
		if err != nil {
			return nil, err
		}
		return reply.Image{Data: data}, nil
	default:
		return nil, fmt.Errorf("unknown reply kind %q", kind)
	}
}
