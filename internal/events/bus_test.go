package events_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sewa/internal/events"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &events.MemStore{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"reservationId": "123"}
	ctx := context.Background()
	event, err := bus.Emit(ctx, events.TopicReservationHeld, aggregate, payload)
	require.NoError(t, err)
	require.Len(t, store.Events, 1)
	require.Equal(t, events.TopicReservationHeld, store.Events[0].Topic)
	require.JSONEq(t, `{"reservationId":"123"}`, string(store.Events[0].Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["reservationId"])
}

func TestEmitRejectsMissingTopic(t *testing.T) {
	bus := events.Bus{Store: &events.MemStore{}}
	_, err := bus.Emit(context.Background(), "  ", uuid.New(), nil)
	require.Error(t, err)
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := events.Bus{Store: &events.MemStore{}}
	_, err := bus.Emit(context.Background(), events.TopicOrderPlaced, uuid.New(), []byte("{not json"))
	require.Error(t, err)
}
