// Package notify sends best-effort user notifications by email and telegram.
package notify

import (
	"github.com/rs/zerolog/log"

	"smartcrm/internal/models"
)

// Notifier fans a domain event out to the channels a user has. Failures are
// logged and never returned.
type Notifier struct {
	mail EmailService
	tg   Messenger
}

func New(mail EmailService, tg Messenger) *Notifier {
	return &Notifier{mail: mail, tg: tg}
}

func (n *Notifier) Welcome(u *models.User) {
	if n == nil || n.mail == nil || u == nil || u.Email == "" {
		return
	}
	if err := n.mail.SendWelcomeEmail(u.Email, u.FullName, u.Username); err != nil {
		log.Warn().Err(err).Int("user_id", u.ID).Msg("[notify][welcome] failed")
	}
}

func (n *Notifier) LeadAssigned(assignee *models.User, leadID, company, by string) {
	if n == nil || n.tg == nil || assignee == nil || assignee.TelegramChatID == nil {
		return
	}
	if err := n.tg.SendMessage(*assignee.TelegramChatID, leadAssignedText(leadID, company, by)); err != nil {
		log.Warn().Err(err).Int("user_id", assignee.ID).Str("lead_id", leadID).Msg("[notify][assigned] failed")
	}
}

// Digest sends today's follow-ups by email (when enabled) and telegram.
func (n *Notifier) Digest(u *models.User, items []models.FollowUp, email bool) {
	if n == nil || u == nil || len(items) == 0 {
		return
	}
	if email && n.mail != nil && u.Email != "" {
		if err := n.mail.SendDigestEmail(u.Email, u.FullName, items); err != nil {
			log.Warn().Err(err).Int("user_id", u.ID).Msg("[notify][digest] email failed")
		}
	}
	if n.tg != nil && u.TelegramChatID != nil {
		if err := n.tg.SendMessage(*u.TelegramChatID, digestText(items)); err != nil {
			log.Warn().Err(err).Int("user_id", u.ID).Msg("[notify][digest] telegram failed")
		}
	}
}
