
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/render"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
)

// Sender is the part of *tgbotapi.BotAPI the package uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

const (
	PostModeEdit = "edit"
	PostModeNew  = "new"
)

type Config struct {
	ChatIDs  []int64
	AdminIDs []int64
	// PostMode "edit" edits the last board message of a chat, "new" always
	// sends a new one.
	PostMode string
	Template string
	// NotifyEvery throttles failure notices per chat.
	NotifyEvery time.Duration
}

// Publisher posts the board to the configured chats after every refresh.
type Publisher struct {
	bot Sender
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu             sync.Mutex
	lastMsg        map[int64]int
	lastFailNotify map[int64]time.Time
}

func NewPublisher(bot Sender, cfg Config, log *logger.Logger) *Publisher {
	if cfg.PostMode == "" {
		cfg.PostMode = PostModeEdit
	}
	if cfg.NotifyEvery <= 0 {
		cfg.NotifyEvery = 30 * time.Minute
	}
	return &Publisher{
		bot:            bot,
		cfg:            cfg,
		log:            log,
		now:            time.Now,
		lastMsg:        map[int64]int{},
		lastFailNotify: map[int64]time.Time{},
	}
}

// Publish sends snap to every configured chat. Failures are logged and
// reported to admins.
func (p *Publisher) Publish(ctx context.Context, snap *snapshot.Snapshot) {
	out := render.BuildMessage(snap, p.cfg.Template)
	for _, chatID := range p.cfg.ChatIDs {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.PostTo(chatID, out); err != nil {
			p.log.Warn("chat %d: %v", chatID, err)
			p.notifyFail(chatID, err)
		}
	}
}

// PostTo edits the chat's last board message or sends a new one, returning
// the message id now holding the board.
func (p *Publisher) PostTo(chatID int64, out render.Output) (int, error) {
	if p.cfg.PostMode == PostModeEdit {
		p.mu.Lock()
		mid, ok := p.lastMsg[chatID]
		p.mu.Unlock()
		if ok {
			edit := tgbotapi.NewEditMessageText(chatID, mid, out.Text)
			edit.DisableWebPagePreview = true
			_, err := p.bot.Request(edit)
			if err == nil || strings.Contains(err.Error(), "message is not modified") {
				return mid, nil
			}
			// If edit failed, fall through to new post.
		}
	}

	msg := tgbotapi.NewMessage(chatID, out.Text)
	msg.DisableWebPagePreview = true
	sent, err := p.bot.Send(msg)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.lastMsg[chatID] = sent.MessageID
	p.mu.Unlock()
	return sent.MessageID, nil
}

// NotifyAdmins sends text to every admin, best effort.
func (p *Publisher) NotifyAdmins(text string, kb *tgbotapi.InlineKeyboardMarkup) {
	for _, id := range p.cfg.AdminIDs {
		msg := tgbotapi.NewMessage(id, text)
		if kb != nil {
			msg.ReplyMarkup = kb
		}
		if _, err := p.bot.Send(msg); err != nil {
			p.log.Warn("notify admin %d: %v", id, err)
		}
	}
}

func (p *Publisher) notifyFail(chatID int64, err error) {
	p.mu.Lock()
	last := p.lastFailNotify[chatID]
	if p.now().Sub(last) < p.cfg.NotifyEvery {
		p.mu.Unlock()
		return
	}
	p.lastFailNotify[chatID] = p.now()
	p.mu.Unlock()

	text := fmt.Sprintf("⚠️ Pano %d sohbetine gönderilemedi\nHata: %v", chatID, err)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Yenile", callbackRefresh),
			tgbotapi.NewInlineKeyboardButtonData("🧰 Durum", callbackStatus),
		),
	)
	p.NotifyAdmins(text, &kb)
}
