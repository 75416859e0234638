package notify

import (
	"io"
	"testing"
	"time"

	"halltime/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func testPayload() events.AppointmentEventPayload {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return events.AppointmentEventPayload{
		AppointmentID: 42,
		HallID:        1,
		HallName:      "Arena",
		UserID:        7,
		OwnerID:       100,
		Start:         start,
		End:           start.Add(time.Hour),
	}
}

func TestNotifierRoutesEvents(t *testing.T) {
	logger := zerolog.New(io.Discard)
	chats := map[int64]int64{7: 7007, 100: 1001}

	cases := []struct {
		eventType string
		changedBy string
		wantChat  int64
	}{
		{events.EventAppointmentRequested, "user", 1001},
		{events.EventAppointmentApproved, "owner", 7007},
		{events.EventAppointmentRejected, "owner", 7007},
		{events.EventAppointmentCancelled, "owner", 7007},
		{events.EventAppointmentCancelled, "user", 1001},
		{events.EventAppointmentCheckedIn, "user", 1001},
	}

	for _, tc := range cases {
		t.Run(tc.eventType+"_"+tc.changedBy, func(t *testing.T) {
			sender := &fakeSender{}
			notifier := NewTelegramNotifierWithSender(sender, chats, &logger)

			bus := events.NewEventBus()
			notifier.Register(bus)

			payload := testPayload()
			payload.ChangedBy = tc.changedBy
			require.NoError(t, bus.PublishJSON(tc.eventType, payload))

			require.Len(t, sender.sent, 1)
			assert.Equal(t, tc.wantChat, sender.sent[0].ChatID)
			assert.NotEmpty(t, sender.sent[0].Text)
		})
	}
}

func TestNotifierSkipsUnregisteredChat(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := &fakeSender{}
	notifier := NewTelegramNotifierWithSender(sender, map[int64]int64{}, &logger)

	bus := events.NewEventBus()
	notifier.Register(bus)

	require.NoError(t, bus.PublishJSON(events.EventAppointmentRequested, testPayload()))
	assert.Empty(t, sender.sent)
}

func TestNotifierIgnoresUnknownEvent(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := &fakeSender{}
	notifier := NewTelegramNotifierWithSender(sender, map[int64]int64{100: 1001}, &logger)

	err := notifier.handleEvent(&events.Event{Type: "something_else", Payload: []byte(`{}`)})
	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}
