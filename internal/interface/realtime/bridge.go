package realtime

import (
	"fmt"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/engagement"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// BindEventBus subscribes the hub to the domain events it pushes to
// clients. Alert events route by alert type: mastery alerts go to the
// student's personal room, everything else to the class room.
func (h *Hub) BindEventBus(bus shared.EventSubscriber) error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventAlertCreated:           h.onAlertCreated,
		shared.EventAlertBroadcast:         h.onAlertBroadcast,
		shared.EventEngagementSampleLogged: h.onEngagementSample,
	}

	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}
	return nil
}

// onAlertCreated pushes a freshly detected alert as its type-specific
// wire event.
func (h *Hub) onAlertCreated(event shared.Event) error {
	e, ok := event.(shared.AlertCreatedEvent)
	if !ok {
		return nil
	}

	switch alert.Type(e.AlertType) {
	case alert.TypeMasteryThreshold:
		if e.StudentID == "" {
			return nil
		}
		h.Broadcast(RoomStudent(e.StudentID), OutboundMessage{
			Type: MessageMasteryThreshold,
			Payload: MasteryThresholdPayload{
				ConceptID:    e.ConceptID,
				MasteryScore: e.Value,
				Timestamp:    e.OccurredAt(),
			},
		})

	case alert.TypeEngagementDrop:
		h.Broadcast(RoomClass(e.ClassID), OutboundMessage{
			Type: MessageEngagementDrop,
			Payload: EngagementDropPayload{
				StudentID:       e.StudentID,
				EngagementIndex: e.Value,
				Timestamp:       e.OccurredAt(),
			},
		})

	default:
		h.Broadcast(RoomClass(e.ClassID), OutboundMessage{
			Type: MessageConfusionAlert,
			Payload: ConfusionAlertPayload{
				ClassID:   e.ClassID,
				Severity:  e.Severity,
				Timestamp: e.OccurredAt(),
			},
		})
	}
	return nil
}

// onAlertBroadcast re-announces a stored unresolved alert to its class
// room. Produced by the periodic broadcast sweep.
func (h *Hub) onAlertBroadcast(event shared.Event) error {
	e, ok := event.(shared.AlertBroadcastEvent)
	if !ok {
		return nil
	}

	h.Broadcast(RoomClass(e.ClassID), OutboundMessage{
		Type: MessageAlert,
		Payload: AlertPayload{
			AlertType: e.AlertType,
			Severity:  e.Severity,
			Message:   e.Message,
			Timestamp: e.CreatedAt,
		},
	})
	return nil
}

// onEngagementSample pushes an immediate ENGAGEMENT_DROP when an
// ingested sample falls below the drop threshold, without waiting for
// the next detection sweep.
func (h *Hub) onEngagementSample(event shared.Event) error {
	e, ok := event.(shared.EngagementSampleLoggedEvent)
	if !ok {
		return nil
	}
	if e.EngagementIndex >= engagement.DropThreshold {
		return nil
	}

	h.Broadcast(RoomClass(e.ClassID), OutboundMessage{
		Type: MessageEngagementDrop,
		Payload: EngagementDropPayload{
			StudentID:       e.StudentID,
			EngagementIndex: e.EngagementIndex,
			Timestamp:       e.OccurredAt(),
		},
	})
	return nil
}
