package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/obentoo/paperbot/internal/common/logger"
	"github.com/obentoo/paperbot/internal/paper"
)

// DefaultHandlerTimeout bounds the work done for one chat message
const DefaultHandlerTimeout = 45 * time.Second

// Intents requested from the gateway. Message content is needed to read
// commands and phrases.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// ErrSendFailed is returned when a message cannot be delivered to Discord
var ErrSendFailed = errors.New("failed to send message")

// Session is the subset of *discordgo.Session used by the bot.
type Session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Poller is started on the first login and stopped on shutdown.
type Poller interface {
	Start() bool
	Stop()
}

// NewSession creates a Discord session for a bot token with the intents
// the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = Intents
	session.LogLevel = discordgo.LogWarning
	return session, nil
}

// Options configures a Bot.
type Options struct {
	// ChannelID receives version announcements
	ChannelID string
	// Router handles prefixed commands
	Router *Router
	// HandlerTimeout bounds each message handler (default 45s)
	HandlerTimeout time.Duration
	// Logger receives bot events (default: logger.Named("bot"))
	Logger *logger.Logger
}

// Bot glues a Discord session to the command router and the poller.
type Bot struct {
	session        Session
	channelID      string
	router         *Router
	handlerTimeout time.Duration
	log            *logger.Logger

	// self is the bot user, set on every Ready event
	self atomic.Pointer[discordgo.User]

	mu       sync.Mutex
	poller   Poller
	removers []func()
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a bot on top of session.
func New(session Session, opts Options) *Bot {
	if opts.Router == nil {
		opts.Router = NewRouter(DefaultPrefix)
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = DefaultHandlerTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("bot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		session:        session,
		channelID:      opts.ChannelID,
		router:         opts.Router,
		handlerTimeout: opts.HandlerTimeout,
		log:            opts.Logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetPoller sets the poller started on login. The poller usually needs the
// bot as its notifier, hence the separate setter.
func (b *Bot) SetPoller(p Poller) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.poller = p
}

// Open registers the event handlers and connects to the gateway.
func (b *Bot) Open() error {
	b.mu.Lock()
	b.removers = append(b.removers,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onMessageCreate),
	)
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	return nil
}

// Close stops the poller, cancels running handlers and closes the session.
func (b *Bot) Close() error {
	b.cancel()

	b.mu.Lock()
	poller := b.poller
	removers := b.removers
	b.removers = nil
	b.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	for _, remove := range removers {
		remove()
	}
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("closing discord session: %w", err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.handleReady(r.User)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.handleMessage(m.Message)
}

// handleReady runs on every login and reconnect. The poller is started
// once; later Ready events leave it alone.
func (b *Bot) handleReady(user *discordgo.User) {
	if user != nil {
		b.self.Store(user)
		b.log.Info("Logged in as %s", user.String())
	}

	b.mu.Lock()
	poller := b.poller
	b.mu.Unlock()

	if poller != nil && poller.Start() {
		b.log.Info("Version poller started")
	}
}

// handleMessage runs reactions and commands for a message. Messages from
// bots, including this one, are ignored.
func (b *Bot) handleMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}

	for _, resp := range React(Incoming{Content: m.Content, MentionsBot: b.mentioned(m)}) {
		if err := b.send(m.ChannelID, resp); err != nil {
			b.log.Error("Reaction failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.handlerTimeout)
	defer cancel()

	reply, ok := b.router.Dispatch(ctx, m.Content, Request{
		ChannelID: m.ChannelID,
		Author:    m.Author.String(),
	})
	if !ok || reply == "" {
		return
	}
	if err := b.send(m.ChannelID, Response{Content: reply}); err != nil {
		b.log.Error("Reply failed: %v", err)
	}
}

// mentioned reports whether m mentions the logged in user.
func (b *Bot) mentioned(m *discordgo.Message) bool {
	self := b.self.Load()
	if self == nil {
		return false
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == self.ID {
			return true
		}
	}
	return false
}

// send delivers a response as text or as an image embed.
func (b *Bot) send(channelID string, r Response) error {
	var err error
	if r.ImageURL != "" {
		_, err = b.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: r.ImageURL},
		})
	} else {
		_, err = b.session.ChannelMessageSend(channelID, r.Content)
	}
	if err != nil {
		return fmt.Errorf("%w to channel %s: %v", ErrSendFailed, channelID, err)
	}
	return nil
}

// Notify announces a new version in the configured channel. It implements
// paper.Notifier.
func (b *Bot) Notify(ctx context.Context, event paper.NotificationEvent) error {
	if _, err := b.session.ChannelMessageSend(b.channelID, event.Message(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: %w to channel %s: %v", paper.ErrNetwork, ErrSendFailed, b.channelID, err)
	}
	return nil
}
