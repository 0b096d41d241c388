// Package telegram is a remote operator front end: owners send the same
// text commands they would type at the console, and the bot replies with
// the scheduler's answer. It also forwards log records to a log chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"jobsched/internal/command"
	rtsup "jobsched/internal/runtime/supervisor"
	logx "jobsched/pkg/logx"
)

type Config struct {
	Token        string
	OwnerUserIDs []int64
	GroupLog     int64 // chat receiving forwarded log records, 0 disables
	PollTimeout  time.Duration
	RatePerSec   float64 // per chat
	ReplyTimeout time.Duration
}

type Bot struct {
	log  logx.Logger
	cmds chan<- command.Command
	bot  *tele.Bot
	send func(ctx context.Context, chatID int64, text string) error

	mu       sync.Mutex
	cfg      Config
	limiters map[int64]*rate.Limiter

	runMu sync.Mutex
	sup   *rtsup.Supervisor
}

func New(cfg Config, cmds chan<- command.Command, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	b := newBot(cfg, cmds, log)
	b.bot = tb
	b.send = b.sendTelegram
	tb.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil || m.Chat == nil {
			return nil
		}
		b.handle(context.Background(), m.Chat.ID, m.Sender.ID, m.Text)
		return nil
	})
	return b, nil
}

func newBot(cfg Config, cmds chan<- command.Command, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{log: log, cmds: cmds, cfg: normalize(cfg), limiters: map[int64]*rate.Limiter{}}
}

func normalize(cfg Config) Config {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 10 * time.Second
	}
	return cfg
}

// Apply updates owners, log chat and limits. Token and poll timeout need a
// restart.
func (b *Bot) Apply(cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cfg = normalize(cfg)
	if cfg.RatePerSec != b.cfg.RatePerSec {
		b.limiters = map[int64]*rate.Limiter{}
	}
	b.cfg = cfg
}

func (b *Bot) Start(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.sup != nil {
		return nil
	}
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(b.log),
		rtsup.WithCancelOnError(false),
	)
	b.sup = sup

	sup.Go0("telegram.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		b.bot.Stop()
	})
	// telebot's Start blocks until Stop; restart it if it returns early.
	sup.GoRestart("telegram.poll", func(c context.Context) error {
		b.log.Info("polling started")
		b.bot.Start()
		b.log.Info("polling stopped")
		return nil
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	b.runMu.Lock()
	sup := b.sup
	b.sup = nil
	b.runMu.Unlock()
	if sup == nil {
		return nil
	}
	sup.Cancel()

	// Never hold shutdown hostage to a pending long poll.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		b.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

// SendLog implements logx.Sender.
func (b *Bot) SendLog(ctx context.Context, text string) error {
	b.mu.Lock()
	chat := b.cfg.GroupLog
	b.mu.Unlock()
	if chat == 0 {
		return nil
	}
	return b.send(ctx, chat, text)
}

func (b *Bot) isOwner(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.cfg.OwnerUserIDs {
		if o == id {
			return true
		}
	}
	return false
}

func (b *Bot) allow(chatID int64) bool {
	b.mu.Lock()
	lim, ok := b.limiters[chatID]
	if !ok {
		burst := int(b.cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(b.cfg.RatePerSec), burst)
		b.limiters[chatID] = lim
	}
	b.mu.Unlock()
	return lim.Allow()
}

// handle serves one incoming text message.
func (b *Bot) handle(ctx context.Context, chatID, fromID int64, text string) {
	if !b.isOwner(fromID) {
		b.log.Debug("ignoring message from non-owner", logx.Int64("from", fromID))
		return
	}
	if !b.allow(chatID) {
		b.reply(ctx, chatID, "rate limited, try again shortly")
		return
	}
	line := commandText(text)
	if line == "" {
		return
	}
	cmd, err := command.Parse(line)
	if err != nil {
		b.reply(ctx, chatID, "error: "+err.Error())
		return
	}
	b.reply(ctx, chatID, b.submit(ctx, cmd))
}

func (b *Bot) submit(ctx context.Context, cmd command.Command) string {
	b.mu.Lock()
	timeout := b.cfg.ReplyTimeout
	b.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply := make(chan command.Result, 1)
	cmd.Reply = reply
	cmd.Source = "telegram"
	select {
	case b.cmds <- cmd:
	case <-ctx.Done():
		return "error: scheduler busy"
	}
	select {
	case res := <-reply:
		if res.Err != nil {
			return "error: " + res.Err.Error()
		}
		return res.Text
	case <-ctx.Done():
		return "error: no reply from scheduler"
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.send(ctx, chatID, text); err != nil {
		b.log.Warn("telegram send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (b *Bot) sendTelegram(ctx context.Context, chatID int64, text string) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.bot.Send(chat, chunk, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
			return fmt.Errorf("send to %d: %w", chatID, err)
		}
	}
	return nil
}

// commandText turns "/kill@jobbot 42" into "kill 42".
func commandText(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "/") {
		return s
	}
	s = s[1:]
	verb, rest, _ := strings.Cut(s, " ")
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	return strings.TrimSpace(verb + " " + rest)
}
