
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Armin-kho/doviz-board/internal/logger"
	"github.com/Armin-kho/doviz-board/internal/render"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
	"github.com/Armin-kho/doviz-board/internal/sources"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

const (
	callbackRefresh = "refresh"
	callbackStatus  = "status"
)

const helpText = `Döviz panosu

/kur - güncel kurlar
/durum - kaynak durumu (yönetici)
/yenile - verileri şimdi yenile (yönetici)`

// Board is the snapshot service as seen by the bot.
type Board interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}

// Bot answers commands in private chats and groups.
type Bot struct {
	bot      Sender
	board    Board
	template string
	admins   map[int64]bool
	log      *logger.Logger
}

func NewBot(bot Sender, board Board, cfg Config, log *logger.Logger) *Bot {
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	return &Bot{bot: bot, board: board, template: cfg.Template, admins: admins, log: log}
}

// Run handles updates until the channel closes or ctx ends. Each update
// runs on its own goroutine; Run returns once they have all finished.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, upd)
			}()
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		b.handleMessage(ctx, *upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		b.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg tgbotapi.Message) {
	if msg.Chat == nil || !msg.IsCommand() {
		return
	}
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help", "yardim":
		b.send(chatID, helpText, nil)
	case "kur":
		b.sendBoard(ctx, chatID)
	case "durum":
		if !b.admins[userID] {
			return
		}
		b.sendStatus(ctx, chatID, 0)
	case "yenile":
		if !b.admins[userID] {
			return
		}
		b.refresh(ctx, chatID, 0)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q tgbotapi.CallbackQuery) {
	_, _ = b.bot.Request(tgbotapi.NewCallback(q.ID, ""))
	if q.From == nil || !b.admins[q.From.ID] || q.Message == nil || q.Message.Chat == nil {
		return
	}

	chatID, msgID := q.Message.Chat.ID, q.Message.MessageID
	switch q.Data {
	case callbackRefresh:
		b.refresh(ctx, chatID, msgID)
	case callbackStatus:
		b.sendStatus(ctx, chatID, msgID)
	}
}

func (b *Bot) sendBoard(ctx context.Context, chatID int64) {
	snap, err := b.board.Get(ctx)
	if err != nil {
		b.log.Warn("board for %d: %v", chatID, err)
		b.send(chatID, "Döviz kurları alınamadı", nil)
		return
	}
	b.send(chatID, render.BuildMessage(snap, b.template).Text, nil)
}

func (b *Bot) refresh(ctx context.Context, chatID int64, msgID int) {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	snap, err := b.board.Refresh(ctx)
	if err != nil && snap == nil {
		b.editOrSend(chatID, msgID, "⚠️ Yenileme başarısız: "+err.Error(), statusKeyboard())
		return
	}
	text := statusText(snap)
	if err != nil {
		text = "⚠️ Yenileme başarısız, önceki veri gösteriliyor: " + err.Error() + "\n\n" + text
	}
	b.editOrSend(chatID, msgID, text, statusKeyboard())
}

func (b *Bot) sendStatus(ctx context.Context, chatID int64, msgID int) {
	snap, err := b.board.Get(ctx)
	if err != nil {
		b.editOrSend(chatID, msgID, "🧰 Durum\n\nVeri yok: "+err.Error(), statusKeyboard())
		return
	}
	b.editOrSend(chatID, msgID, statusText(snap), statusKeyboard())
}

func statusText(snap *snapshot.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧰 Durum\n\nSon güncelleme: %s\nDöngü: %s\n\n", utils.DateTime(snap.LastUpdate), snap.CycleID)
	for _, name := range sortedSources(snap) {
		mark := "✅"
		if len(snap.Sources[name]) == 0 {
			mark = "❌"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, render.SourceLabel(name))
	}
	if gc := snap.GoldComparison; gc != nil {
		fmt.Fprintf(&sb, "\nAltın: %s (%s%%)", gc.Difference.Status, gc.Difference.Percent)
	} else {
		sb.WriteString("\nAltın karşılaştırması yok")
	}
	return sb.String()
}

// sortedSources lists known sources in registry order, then any others.
func sortedSources(snap *snapshot.Snapshot) []sources.SourceName {
	out := make([]sources.SourceName, 0, len(snap.Sources))
	known := map[sources.SourceName]bool{}
	for _, n := range sources.DefaultOrder {
		known[n] = true
		if _, ok := snap.Sources[n]; ok {
			out = append(out, n)
		}
	}
	var rest []sources.SourceName
	for n := range snap.Sources {
		if !known[n] {
			rest = append(rest, n)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

func statusKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Yenile", callbackRefresh),
			tgbotapi.NewInlineKeyboardButtonData("🧰 Durum", callbackStatus),
		),
	)
}

func (b *Bot) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := b.bot.Send(msg); err != nil {
		b.log.Warn("send %d: %v", chatID, err)
	}
}

func (b *Bot) editOrSend(chatID int64, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ReplyMarkup = &kb
		edit.DisableWebPagePreview = true
		if _, err := b.bot.Request(edit); err == nil {
			return
		}
	}
	b.send(chatID, text, &kb)
}
