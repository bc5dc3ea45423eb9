package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"notification-hub-be/internal/dto"
	"notification-hub-be/internal/model"
	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/internal/realtime"
	"notification-hub-be/internal/repository"
	"notification-hub-be/pkg/events"
	pktNats "notification-hub-be/pkg/nats"
	"notification-hub-be/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const notificationModule = "NotificationService"

var (
	ErrNotFound        = errors.New("notification not found")
	ErrInvalidTarget   = errors.New("target username is required")
	ErrRequestInFlight = errors.New("request with this idempotency key is still in progress")
)

// NotificationDelivery pushes events to live channels. Implemented by the
// realtime registry.
type NotificationDelivery interface {
	Send(identity, eventName string, payload interface{}) bool
	Broadcast(eventName string, payload interface{})
	ActiveIdentities() []string
}

type PageOptions struct {
	DefaultSize int
	MaxSize     int
}

type NotificationService struct {
	notifications repository.NotificationRepository
	reads         repository.NotificationReadRepository
	delivery      NotificationDelivery
	events        IPublisherService
	logger        logger.ILogger
	tracer        trace.Tracer
	page          PageOptions
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	reads repository.NotificationReadRepository,
	delivery NotificationDelivery,
	eventPublisher IPublisherService,
	log logger.ILogger,
	page PageOptions,
) *NotificationService {
	if page.DefaultSize < 1 {
		page.DefaultSize = 50
	}
	if page.MaxSize < page.DefaultSize {
		page.MaxSize = page.DefaultSize
	}
	return &NotificationService{
		notifications: notifications,
		reads:         reads,
		delivery:      delivery,
		events:        eventPublisher,
		logger:        log,
		tracer:        otel.Tracer("notification-service"),
		page:          page,
	}
}

// Broadcast stores an ALL-targeted notification, pushes it to every live
// channel and then refreshes each connected user's unread count. The refresh
// costs one count query per active user.
func (s *NotificationService) Broadcast(ctx context.Context, sender, title, body string) (*dto.NotificationMessage, error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.Broadcast")
	defer span.End()

	notification := &model.Notification{
		TargetType: model.TargetAll,
		Title:      title,
		Body:       body,
		Sender:     utils.NormalizeUsername(sender),
	}
	if err := s.notifications.Save(ctx, notification); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save broadcast notification: %w", err)
	}
	span.SetAttributes(attribute.Int64("notification.id", notification.ID))

	msg := dto.NewNotificationMessage(notification)
	s.delivery.Broadcast(realtime.EventNotification, msg)

	active := s.delivery.ActiveIdentities()
	for _, identity := range active {
		s.pushUnreadCount(ctx, identity)
	}
	span.SetAttributes(attribute.Int("realtime.active", len(active)))

	s.logger.Info(notificationModule, "Broadcast sent", map[string]interface{}{
		"notification_id": notification.ID,
		"sender":          notification.Sender,
		"active":          len(active),
	})
	s.publishCreated(ctx, msg)
	return msg, nil
}

// SendToUser stores a notification for one user and reports whether it was
// pushed to a live channel.
func (s *NotificationService) SendToUser(ctx context.Context, sender, target, title, body string) (*dto.AdminSendResult, error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.SendToUser")
	defer span.End()

	target = utils.NormalizeUsername(target)
	if target == "" {
		return nil, ErrInvalidTarget
	}

	notification := &model.Notification{
		TargetType:     model.TargetUser,
		TargetUsername: &target,
		Title:          title,
		Body:           body,
		Sender:         utils.NormalizeUsername(sender),
	}
	if err := s.notifications.Save(ctx, notification); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save targeted notification: %w", err)
	}

	msg := dto.NewNotificationMessage(notification)
	// The recipient's copy is encoded inside Send and always carries
	// delivered=false; only the sender's view learns the outcome.
	delivered := s.delivery.Send(target, realtime.EventNotification, msg)
	msg.Delivered = delivered

	s.pushUnreadCount(ctx, target)

	span.SetAttributes(
		attribute.Int64("notification.id", notification.ID),
		attribute.Bool("notification.delivered", delivered),
	)
	s.logger.Info(notificationModule, "Targeted notification sent", map[string]interface{}{
		"notification_id": notification.ID,
		"target":          target,
		"delivered":       delivered,
	})
	s.publishCreated(ctx, msg)

	return &dto.AdminSendResult{Message: msg, Delivered: delivered}, nil
}

// MarkRead records that username has read notificationID. Repeated calls
// succeed without creating another read mark.
func (s *NotificationService) MarkRead(ctx context.Context, username string, notificationID int64) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.MarkRead")
	defer span.End()

	username = utils.NormalizeUsername(username)

	exists, err := s.notifications.ExistsByID(ctx, notificationID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("check notification %d: %w", notificationID, err)
	}
	if !exists {
		return ErrNotFound
	}

	alreadyRead, err := s.reads.ExistsReadMark(ctx, notificationID, username)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("check read mark: %w", err)
	}

	if !alreadyRead {
		err = s.reads.SaveReadMark(ctx, &model.NotificationRead{NotificationID: notificationID, Username: username})
		switch {
		case errors.Is(err, repository.ErrDuplicateReadMark):
			// A concurrent call for the same pair won the insert.
			alreadyRead = true
		case err != nil:
			span.RecordError(err)
			return fmt.Errorf("save read mark: %w", err)
		}
	}

	s.pushUnreadCount(ctx, username)

	if !alreadyRead {
		s.publishRead(ctx, username, []int64{notificationID})
	}
	return nil
}

// MarkAllRead marks every visible unread notification as read and returns
// how many read marks were created.
func (s *NotificationService) MarkAllRead(ctx context.Context, username string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.MarkAllRead")
	defer span.End()

	username = utils.NormalizeUsername(username)

	ids, err := s.notifications.FindUnreadIDsForUser(ctx, username)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("find unread notifications: %w", err)
	}

	var marked int64
	if len(ids) > 0 {
		marks := make([]model.NotificationRead, 0, len(ids))
		for _, id := range ids {
			marks = append(marks, model.NotificationRead{NotificationID: id, Username: username})
		}
		marked, err = s.reads.SaveReadMarks(ctx, marks)
		if err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("save read marks: %w", err)
		}
	}

	s.pushUnreadCount(ctx, username)
	if marked > 0 {
		s.publishRead(ctx, username, ids)
	}
	span.SetAttributes(attribute.Int64("notification.marked", marked))
	return marked, nil
}

// List returns the newest visible notifications with per-item read flags.
// size is clamped to the configured bounds.
func (s *NotificationService) List(ctx context.Context, username string, size int) ([]dto.NotificationView, error) {
	ctx, span := s.tracer.Start(ctx, "NotificationService.List")
	defer span.End()

	username = utils.NormalizeUsername(username)
	size = s.clampSize(size)

	notifications, err := s.notifications.FindVisibleForUser(ctx, username, 0, size)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find notifications: %w", err)
	}

	ids := make([]int64, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ID)
	}

	read, err := s.reads.FindReadNotificationIDs(ctx, username, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find read marks: %w", err)
	}

	views := make([]dto.NotificationView, 0, len(notifications))
	for _, n := range notifications {
		_, isRead := read[n.ID]
		views = append(views, dto.NewNotificationView(n, isRead))
	}
	return views, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, username string) (int64, error) {
	count, err := s.notifications.CountUnreadForUser(ctx, utils.NormalizeUsername(username))
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) ActiveUsers() []string {
	return s.delivery.ActiveIdentities()
}

func (s *NotificationService) clampSize(size int) int {
	if size < 1 {
		return s.page.DefaultSize
	}
	if size > s.page.MaxSize {
		return s.page.MaxSize
	}
	return size
}

// pushUnreadCount recomputes from storage and pushes best-effort. A failed
// count is logged and skipped; the next read path recomputes it anyway.
func (s *NotificationService) pushUnreadCount(ctx context.Context, username string) {
	count, err := s.notifications.CountUnreadForUser(ctx, username)
	if err != nil {
		s.logger.Warn(notificationModule, "Failed to recompute unread count", map[string]interface{}{
			"username": username,
			"error":    err,
		})
		return
	}
	s.delivery.Send(username, realtime.EventUnreadCount, count)
}

func (s *NotificationService) publishCreated(ctx context.Context, msg *dto.NotificationMessage) {
	s.publish(ctx, events.New(events.TypeNotificationCreated, map[string]interface{}{
		"id":        strconv.FormatInt(msg.ID, 10),
		"title":     msg.Title,
		"sender":    msg.Sender,
		"target":    msg.Target,
		"delivered": msg.Delivered,
	}))
}

func (s *NotificationService) publishRead(ctx context.Context, username string, ids []int64) {
	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, strconv.FormatInt(id, 10))
	}
	s.publish(ctx, events.New(events.TypeNotificationRead, map[string]interface{}{
		"username":         username,
		"notification_ids": idStrings,
	}))
}

func (s *NotificationService) publish(ctx context.Context, evt events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn(notificationModule, "Failed to publish domain event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err,
		})
	}
}

// Start consumes send commands from the bus. The returned func stops it.
func (s *NotificationService) Start(ctx context.Context, subscriber *pktNats.Subscriber) (func(), error) {
	stop, err := subscriber.Subscribe(ctx, pktNats.Subject("command.>"), "notification-command-worker", s.HandleEvent)
	if err != nil {
		s.logger.Error(notificationModule, "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return nil, err
	}
	s.logger.Info(notificationModule, "Listening for notification commands", map[string]interface{}{"subject": pktNats.Subject("command.>")})
	return stop, nil
}

// HandleEvent turns a bus command into a send. Malformed commands are
// permanent failures; storage errors are returned for redelivery.
func (s *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	sender := events.StringField(payload, "sender")
	title := events.StringField(payload, "title")
	body := events.StringField(payload, "body")

	if sender == "" {
		sender = "system"
	}

	switch event.EventType() {
	case events.TypeBroadcastCommand:
		if err := s.requireContent(event, title, body); err != nil {
			return err
		}
		_, err := s.Broadcast(ctx, sender, title, body)
		return err
	case events.TypeUserCommand:
		if err := s.requireContent(event, title, body); err != nil {
			return err
		}
		_, err := s.SendToUser(ctx, sender, events.StringField(payload, "target"), title, body)
		if errors.Is(err, ErrInvalidTarget) {
			return fmt.Errorf("%w: %v", pktNats.ErrPermanent, err)
		}
		return err
	default:
		s.logger.Debug(notificationModule, "Ignoring unknown command", map[string]interface{}{"type": event.EventType()})
		return nil
	}
}

func (s *NotificationService) requireContent(event events.Event, title, body string) error {
	if title != "" && body != "" {
		return nil
	}
	s.logger.Warn(notificationModule, "Dropping command without title or body", map[string]interface{}{"type": event.EventType(), "id": event.EventID()})
	return fmt.Errorf("%w: missing title or body", pktNats.ErrPermanent)
}
