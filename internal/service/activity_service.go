package service

import (
	"context"
	"fmt"

	"redline-be/internal/pkg/logger"
	"redline-be/pkg/events"
	pktNats "redline-be/pkg/nats"
)

// ActivityDurable is the JetStream consumer shared by every instance.
const ActivityDurable = "activity-feed-worker"

// ActivityFrame is pushed to a document room for every domain event.
type ActivityFrame struct {
	Type  string                 `json:"type"`
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
	At    int64                  `json:"at"`
}

// ActivityService turns domain events from the bus into activity frames
// for the rooms they concern.
type ActivityService struct {
	subscriber *pktNats.Subscriber
	rooms      RoomBroadcaster
	logger     logger.ILogger
}

func NewActivityService(sub *pktNats.Subscriber, rooms RoomBroadcaster, log logger.ILogger) *ActivityService {
	return &ActivityService{
		subscriber: sub,
		rooms:      rooms,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *ActivityService) Start(ctx context.Context) {
	if s.subscriber == nil {
		s.logger.Warn("ActivityService", "No event bus, activity feed disabled", nil)
		return
	}
	if err := s.subscriber.Subscribe(ctx, pktNats.AllSubjects, ActivityDurable, s.handleEvent); err != nil {
		s.logger.Error("ActivityService", "Failed to start activity subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("ActivityService", "Activity service started", map[string]interface{}{"subject": pktNats.AllSubjects})
}

func (s *ActivityService) handleEvent(_ context.Context, event events.Event) error {
	s.logger.Info("ActivityService", fmt.Sprintf("Processing event: %s", event.EventType()), map[string]interface{}{"type": event.EventType()})

	payload := event.Payload()
	room, _ := payload["document_id"].(string)
	if room == "" {
		return nil
	}
	s.rooms.BroadcastJSON(room, ActivityFrame{
		Type:  "activity",
		Event: event.EventType(),
		Data:  payload,
		At:    event.Timestamp().UnixMilli(),
	}, "")
	return nil
}
