package service

import (
	"context"
	"encoding/json"
	"fmt"

	"subguard-be/internal/model"
	"subguard-be/internal/pkg/logger"
	"subguard-be/internal/pkg/mailer"
	"subguard-be/internal/repository"
	"subguard-be/pkg/events"
	pktNats "subguard-be/pkg/nats"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, messageType string, payload interface{})
}

// NotificationService turns bus events into the user-facing notification
// feed: a persisted inbox row, a websocket push, and for terminal
// cancellation outcomes an email.
type NotificationService struct {
	repo       repository.NotificationRepository
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	email      mailer.IEmailService
	logger     logger.ILogger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	sub *pktNats.Subscriber,
	delivery NotificationDelivery,
	email mailer.IEmailService,
	log logger.ILogger,
) *NotificationService {
	return &NotificationService{
		repo:       repo,
		subscriber: sub,
		delivery:   delivery,
		email:      email,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("events.>", "notif-service-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	userID, ok := payloadUUID(payload, "user_id")
	if !ok {
		s.logger.Warn("NotificationService", "Event without user_id, skipped", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	title, message := s.render(event.EventType(), payload)
	if title == "" {
		// Unknown event code; nothing to notify about.
		return nil
	}

	notif := s.buildNotification(userID, event, title, message)
	if err := s.repo.CreateNotification(ctx, &notif); err != nil {
		s.logger.Error("NotificationService", "Failed to persist notification", map[string]interface{}{"error": err.Error()})
		return err // NATS redelivers
	}

	if s.delivery != nil {
		s.delivery.Send(userID, "notification", notif)
	}

	s.sendEmail(ctx, userID, event.EventType(), payload)
	return nil
}

// render maps an event code to an inbox title and message.
func (s *NotificationService) render(code string, payload map[string]interface{}) (string, string) {
	provider, _ := payload["provider"].(string)

	switch code {
	case events.TypeSubscriptionDetected:
		confidence, _ := payload["confidence"].(float64)
		return "New subscription detected",
			fmt.Sprintf("We spotted a recurring charge from %s (confidence %.0f%%). Review it in your subscriptions.", provider, confidence*100)
	case events.TypeCancellationInitiated:
		return "Cancellation started",
			fmt.Sprintf("We started cancelling your %s subscription. We'll keep you posted.", provider)
	case events.TypeCancellationCompleted:
		return "Subscription cancelled",
			fmt.Sprintf("Your %s subscription has been cancelled successfully.", provider)
	case events.TypeCancellationFailed:
		return "Cancellation failed",
			fmt.Sprintf("We could not cancel your %s subscription automatically. You can retry or escalate from the request page.", provider)
	case events.TypeCancellationRequiresManual:
		return "Action required",
			fmt.Sprintf("Cancelling %s needs a step only you can do. Open the request for instructions.", provider)
	}
	return "", ""
}

func (s *NotificationService) buildNotification(userID uuid.UUID, event events.Event, title, message string) model.Notification {
	notif := model.Notification{
		ID:       uuid.New(),
		UserID:   userID,
		TypeCode: event.EventType(),
		Title:    title,
		Message:  message,
		IsRead:   false,
	}

	payload := event.Payload()
	if requestID, ok := payloadUUID(payload, "request_id"); ok {
		notif.EntityType = "cancellation_request"
		notif.EntityID = &requestID
	} else if subscriptionID, ok := payloadUUID(payload, "subscription_id"); ok {
		notif.EntityType = "subscription"
		notif.EntityID = &subscriptionID
	}

	if meta, err := json.Marshal(payload); err == nil {
		notif.Metadata = datatypes.JSON(meta)
	}
	return notif
}

// sendEmail mails terminal cancellation outcomes to the user's synced
// contact address. Missing contacts and SMTP failures are logged, never
// propagated; email is best effort.
func (s *NotificationService) sendEmail(ctx context.Context, userID uuid.UUID, code string, payload map[string]interface{}) {
	if s.email == nil {
		return
	}
	switch code {
	case events.TypeCancellationCompleted, events.TypeCancellationFailed, events.TypeCancellationRequiresManual:
	default:
		return
	}

	contact, err := s.repo.GetContact(ctx, userID)
	if err != nil {
		s.logger.Warn("NotificationService", "Contact lookup failed", map[string]interface{}{"user_id": userID, "error": err.Error()})
		return
	}
	if contact == nil || contact.Email == "" {
		return
	}

	provider, _ := payload["provider"].(string)
	switch code {
	case events.TypeCancellationCompleted:
		confirmation, _ := payload["status"].(string)
		if c, ok := payload["confirmation_code"].(string); ok {
			confirmation = c
		}
		err = s.email.SendCancellationCompleted(contact.Email, provider, confirmation)
	case events.TypeCancellationFailed:
		reason, _ := payload["status"].(string)
		err = s.email.SendCancellationFailed(contact.Email, provider, reason)
	case events.TypeCancellationRequiresManual:
		err = s.email.SendActionRequired(contact.Email, provider, "Open your cancellation request for the step-by-step instructions.")
	}
	if err != nil {
		s.logger.Warn("NotificationService", "Failed to send email", map[string]interface{}{"user_id": userID, "error": err.Error()})
	}
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, int64, error) {
	return s.repo.GetNotificationsByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// payloadUUID reads a UUID out of an event payload, tolerating both string
// and uuid.UUID values since the payload round-trips through JSON.
func payloadUUID(payload map[string]interface{}, key string) (uuid.UUID, bool) {
	switch v := payload[key].(type) {
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	case uuid.UUID:
		return v, true
	}
	return uuid.Nil, false
}
