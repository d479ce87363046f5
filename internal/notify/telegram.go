package notify

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/models"
)

// Messenger delivers a short HTML message to a chat.
type Messenger interface {
	SendMessage(chatID int64, text string) error
}

type TelegramService struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramService returns nil when token is empty or the bot cannot be reached.
func NewTelegramService(token string) *TelegramService {
	if token == "" {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Msg("[tg][init] bot disabled")
		return nil
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("[tg][init] authorized")
	return &TelegramService{bot: bot}
}

func (t *TelegramService) SendMessage(chatID int64, text string) error {
	if t == nil || t.bot == nil || chatID == 0 {
		log.Debug().Int64("chat_id", chatID).Msg("[tg][skip] bot or chat id empty")
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func leadAssignedText(leadID, company, by string) string {
	return fmt.Sprintf("📌 <b>New lead assigned</b>\n%s - %s\nAssigned by %s",
		html.EscapeString(leadID), html.EscapeString(company), html.EscapeString(by))
}

func digestText(items []models.FollowUp) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 <b>Follow-ups today: %d</b>\n", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "• %s - %s (%s)\n",
			html.EscapeString(it.LeadID), html.EscapeString(it.CompanyName), html.EscapeString(it.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}
