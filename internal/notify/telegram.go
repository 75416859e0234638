// Package notify delivers appointment updates to Telegram. It listens on the
// event bus; failures are logged and never propagate back to the booking flow.
package notify

import (
	"encoding/json"
	"fmt"

	"halltime/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MessageSender is the slice of tgbotapi.BotAPI the notifier needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	sender MessageSender
	chats  map[int64]int64 // user id -> telegram chat id
	logger *zerolog.Logger
}

func NewTelegramNotifier(token string, chats map[int64]int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &TelegramNotifier{sender: api, chats: chats, logger: logger}, nil
}

// NewTelegramNotifierWithSender is used by tests and callers that own the API
// client lifecycle.
func NewTelegramNotifierWithSender(sender MessageSender, chats map[int64]int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chats: chats, logger: logger}
}

// Register subscribes the notifier to every appointment event.
func (n *TelegramNotifier) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventAppointmentRequested, n.handleEvent)
	bus.Subscribe(events.EventAppointmentApproved, n.handleEvent)
	bus.Subscribe(events.EventAppointmentRejected, n.handleEvent)
	bus.Subscribe(events.EventAppointmentCancelled, n.handleEvent)
	bus.Subscribe(events.EventAppointmentCheckedIn, n.handleEvent)
}

func (n *TelegramNotifier) handleEvent(event *events.Event) error {
	var payload events.AppointmentEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload")
		return err
	}

	recipient, text := n.composeMessage(event.Type, payload)
	if recipient == 0 || text == "" {
		return nil
	}

	chatID, ok := n.chats[recipient]
	if !ok {
		n.logger.Debug().Int64("user_id", recipient).Msg("no telegram chat registered")
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Int64("chat_id", chatID).Str("event_type", event.Type).Msg("send notification")
		return err
	}
	return nil
}

// composeMessage decides who hears about the event and what they read.
// Requests and check-ins go to the hall owner; decisions go to the player.
func (n *TelegramNotifier) composeMessage(eventType string, p events.AppointmentEventPayload) (int64, string) {
	slot := fmt.Sprintf("%s %s-%s",
		p.Start.Format("02.01.2006"),
		p.Start.Format("15:04"),
		p.End.Format("15:04"))

	switch eventType {
	case events.EventAppointmentRequested:
		return p.OwnerID, fmt.Sprintf("Новая заявка на «%s»: %s (заявка #%d)", p.HallName, slot, p.AppointmentID)
	case events.EventAppointmentApproved:
		return p.UserID, fmt.Sprintf("Ваша бронь зала «%s» на %s подтверждена", p.HallName, slot)
	case events.EventAppointmentRejected:
		return p.UserID, fmt.Sprintf("Ваша заявка на зал «%s» на %s отклонена", p.HallName, slot)
	case events.EventAppointmentCancelled:
		if p.ChangedBy == "owner" {
			return p.UserID, fmt.Sprintf("Бронь зала «%s» на %s отменена владельцем", p.HallName, slot)
		}
		return p.OwnerID, fmt.Sprintf("Бронь зала «%s» на %s отменена клиентом", p.HallName, slot)
	case events.EventAppointmentCheckedIn:
		return p.OwnerID, fmt.Sprintf("Отметка о прибытии: «%s», %s (заявка #%d)", p.HallName, slot, p.AppointmentID)
	default:
		return 0, ""
	}
}
