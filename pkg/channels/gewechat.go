package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gewebridge/pkg/agent"
	"gewebridge/pkg/bus"
	"gewebridge/pkg/config"
	"gewebridge/pkg/configops"
	"gewebridge/pkg/filter"
	"gewebridge/pkg/gewechat"
	"gewebridge/pkg/logger"
	"gewebridge/pkg/media"
	"gewebridge/pkg/message"
	"gewebridge/pkg/render"
	"gewebridge/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const ChannelGeWeChat = "gewechat"

// GatewayClient is what the channel needs from the gewechat API.
type GatewayClient interface {
	render.Gateway
	GetToken(ctx context.Context) (string, error)
	SetToken(token string)
	SetCallback(ctx context.Context, token, url string) (*gewechat.Response, error)
	Login(ctx context.Context, appID string, opts gewechat.LoginOptions) (string, error)
	CheckOnline(ctx context.Context, appID string) (bool, error)
}

// GeWeChatDeps overrides collaborators; zero fields get defaults built from
// the config.
type GeWeChatDeps struct {
	Client     GatewayClient
	Transcoder media.Transcoder
	Frames     media.FrameExtractor
	Fetcher    render.Fetcher
	Metrics    prometheus.Gatherer
	Login      gewechat.LoginOptions
}

// GeWeChatChannel is the long-lived gewechat service: it owns the callback
// listener, turns accepted messages into bus traffic and renders replies.
type GeWeChatChannel struct {
	*BaseChannel
	cfg        *config.Config
	configPath string
	client     GatewayClient
	composer   *agent.Composer
	pipeline   *filter.Pipeline
	renderer   *render.Renderer
	metrics    prometheus.Gatherer
	loginOpts  gewechat.LoginOptions

	mu        sync.Mutex
	server    *server.Server
	runCancel cancelGuard
	tasks     *errgroup.Group
	appID     string
}

func NewGeWeChatChannel(cfg *config.Config, configPath string, messageBus *bus.MessageBus, deps GeWeChatDeps) (*GeWeChatChannel, error) {
	token, appID := cfg.Credentials()
	if deps.Client == nil {
		deps.Client = gewechat.NewClient(cfg.Gewechat.BaseURL, token, time.Duration(cfg.Gewechat.TimeoutSec)*time.Second)
	}
	if deps.Transcoder == nil {
		deps.Transcoder = media.NewExecTranscoder(cfg.Media.VoiceCommands, cfg.Media.VoiceSampleRate)
	}
	if deps.Frames == nil {
		deps.Frames = media.NewExecFrameExtractor(cfg.Media.FFmpeg, cfg.Media.FFprobe)
	}
	if deps.Fetcher == nil {
		deps.Fetcher = media.NewDownloader(time.Duration(cfg.Media.DownloadTimeoutSec) * time.Second)
	}

	tmp, err := media.NewTempDir(cfg.TmpDir())
	if err != nil {
		return nil, fmt.Errorf("prepare temp dir: %w", err)
	}

	c := &GeWeChatChannel{
		BaseChannel: NewBaseChannel(ChannelGeWeChat, messageBus),
		cfg:         cfg,
		configPath:  configPath,
		client:      deps.Client,
		composer:    agent.NewComposer(cfg.Agent.GroupPrefixes, cfg.Agent.PrivatePrefixes),
		pipeline:    filter.NewPipeline(time.Duration(cfg.Filter.MaxAgeSec) * time.Second),
		metrics:     deps.Metrics,
		loginOpts:   deps.Login,
		appID:       appID,
	}
	c.renderer = render.New(deps.Client, tmp, deps.Transcoder, deps.Frames, deps.Fetcher, render.Options{
		CallbackURL:          cfg.Gewechat.CallbackURL,
		AppID:                c.AppID,
		SegmentDelimiter:     cfg.Render.SegmentDelimiter,
		SegmentInterval:      time.Duration(cfg.Render.SegmentIntervalMS) * time.Millisecond,
		VideoFallbackSeconds: cfg.Render.VideoFallbackDurationSec,
	})

	if cfg.Gewechat.DownloadURL == "" {
		logger.WarnC(ChannelGeWeChat, "download_url is not set, inbound media cannot be fetched")
	}
	logger.InfoCF(ChannelGeWeChat, "Channel initialized", map[string]interface{}{
		"base_url":        cfg.Gewechat.BaseURL,
		"has_token":       token != "",
		logger.FieldAppID: appID,
		"download_url":    cfg.Gewechat.DownloadURL,
	})
	return c, nil
}

func (c *GeWeChatChannel) AppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appID
}

// Start runs the startup sequence: token, login, listener, then callback
// registration in the background once the listener is ready.
func (c *GeWeChatChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return nil
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	if err := c.ensureLogin(ctx); err != nil {
		return err
	}

	callbackURL := c.cfg.Gewechat.CallbackURL
	port, path, err := ParseCallbackURL(callbackURL)
	if err != nil {
		return err
	}

	metricsPath := ""
	if c.cfg.Metrics.Enabled {
		metricsPath = c.cfg.Metrics.Path
	}
	srv, err := server.New(server.Options{
		Addr:        listenAddr(c.cfg.Gewechat.ListenHost, port),
		Path:        path,
		TempRoot:    c.cfg.TmpDir(),
		ServiceName: ChannelGeWeChat,
		MetricsPath: metricsPath,
		Metrics:     c.metrics,
	}, server.NewInbound(c.pipeline, c))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel.set(cancel)

	if err := srv.Start(runCtx); err != nil {
		c.runCancel.cancelAndClear()
		return fmt.Errorf("start callback server: %w", err)
	}
	select {
	case <-srv.Ready():
	case <-ctx.Done():
		c.runCancel.cancelAndClear()
		_ = srv.Stop(context.Background())
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return c.registerCallback(gctx, token, callbackURL)
	})

	c.mu.Lock()
	c.server = srv
	c.tasks = g
	c.mu.Unlock()
	c.setRunning(true)

	logger.InfoCF(ChannelGeWeChat, "Callback server started", map[string]interface{}{
		logger.FieldURL: callbackURL,
		"port":          port,
	})
	return nil
}

func (c *GeWeChatChannel) ensureToken(ctx context.Context) (string, error) {
	token, _ := c.cfg.Credentials()
	if token != "" {
		c.client.SetToken(token)
		return token, nil
	}

	logger.InfoC(ChannelGeWeChat, "No token configured, fetching a new one")
	token, err := c.client.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch gewechat token: %w", err)
	}
	c.client.SetToken(token)
	c.cfg.SetToken(token)
	c.persist(token, "")
	return token, nil
}

func (c *GeWeChatChannel) ensureLogin(ctx context.Context) error {
	current := c.AppID()
	appID, err := c.client.Login(ctx, current, c.loginOpts)
	if err != nil {
		return fmt.Errorf("gewechat login: %w", err)
	}
	if appID == "" {
		return errors.New("gewechat login returned an empty app id")
	}

	c.mu.Lock()
	c.appID = appID
	c.mu.Unlock()

	if appID != current {
		logger.InfoCF(ChannelGeWeChat, "App id changed after login", map[string]interface{}{
			"previous":        current,
			logger.FieldAppID: appID,
		})
		c.cfg.SetAppID(appID)
		c.persist("", appID)
	}
	return nil
}

func (c *GeWeChatChannel) persist(token, appID string) {
	if c.configPath == "" {
		return
	}
	if err := configops.PersistGewechat(c.configPath, token, appID); err != nil {
		logger.ErrorCF(ChannelGeWeChat, "Failed to persist gateway credentials", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

// registerCallback tells the gateway where to post. The gateway checks the
// URL before answering, so this only runs once the listener is ready.
func (c *GeWeChatChannel) registerCallback(ctx context.Context, token, callbackURL string) error {
	resp, err := c.client.SetCallback(ctx, token, callbackURL)
	if err != nil {
		logger.ErrorCF(ChannelGeWeChat, "Failed to register callback url", map[string]interface{}{
			logger.FieldURL:   callbackURL,
			logger.FieldError: err.Error(),
		})
		return nil
	}
	logger.InfoCF(ChannelGeWeChat, "Callback url registered", map[string]interface{}{
		logger.FieldURL: callbackURL,
		"ret":           resp.Ret,
		"msg":           resp.Msg,
	})
	return nil
}

func (c *GeWeChatChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	srv := c.server
	tasks := c.tasks
	c.server = nil
	c.tasks = nil
	c.mu.Unlock()

	c.runCancel.cancelAndClear()
	if tasks != nil {
		_ = tasks.Wait()
	}
	c.setRunning(false)
	if srv == nil {
		return nil
	}
	return srv.Stop(ctx)
}

// Submit implements server.Ingestor. Messages not addressed to the bot are
// acknowledged and dropped here.
func (c *GeWeChatChannel) Submit(ctx context.Context, m *message.Message) error {
	composed := c.composer.ComposeContext(m.ContentType, m.Content, m.IsGroup, m)
	if composed == nil {
		logger.DebugCF(ChannelGeWeChat, "Message not addressed to the bot", map[string]interface{}{
			logger.FieldChatID:      m.SenderID,
			logger.FieldContentType: m.ContentType.String(),
			logger.FieldPreview:     truncateString(m.Content, 50),
		})
		return nil
	}

	return c.bus.PublishInbound(bus.InboundMessage{
		Channel:     ChannelGeWeChat,
		SenderID:    m.ActualSenderID,
		ChatID:      composed.Receiver,
		Content:     composed.Content,
		ContentType: composed.Type,
		IsGroup:     composed.IsGroup,
		Message:     composed.Message,
	})
}

// Send renders a reply. Rendering failures are logged by the renderer.
func (c *GeWeChatChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if msg.Reply == nil {
		return fmt.Errorf("outbound message for %s has no reply", msg.ChatID)
	}
	c.renderer.Render(ctx, msg.Reply, render.Target{Receiver: msg.ChatID, AtUser: msg.AtUser})
	return nil
}

func (c *GeWeChatChannel) HealthCheck(ctx context.Context) error {
	appID := c.AppID()
	if appID == "" {
		return errors.New("not logged in")
	}
	online, err := c.client.CheckOnline(ctx, appID)
	if err != nil {
		return err
	}
	if !online {
		return fmt.Errorf("account %s is offline", appID)
	}
	return nil
}

// ListenAddr is the callback listener address while running.
func (c *GeWeChatChannel) ListenAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server == nil {
		return ""
	}
	return c.server.Addr()
}
