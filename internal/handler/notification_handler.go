package handler

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"time"

	"notification-hub-be/internal/dto"
	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/internal/pkg/serverutils"
	"notification-hub-be/internal/realtime"
	"notification-hub-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

const (
	handlerModule = "NotificationHandler"

	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type NotificationHandler struct {
	service     *service.NotificationService
	idempotency service.IIdempotencyService
	registry    *realtime.Registry
	jwtSecret   string
	heartbeat   time.Duration
	logger      logger.ILogger
}

func NewNotificationHandler(
	svc *service.NotificationService,
	idempotency service.IIdempotencyService,
	registry *realtime.Registry,
	jwtSecret string,
	heartbeat time.Duration,
	log logger.ILogger,
) *NotificationHandler {
	return &NotificationHandler{
		service:     svc,
		idempotency: idempotency,
		registry:    registry,
		jwtSecret:   jwtSecret,
		heartbeat:   heartbeat,
		logger:      log,
	}
}

// RegisterRoutes mounts the SSE stream on app and everything else under /api.
func (h *NotificationHandler) RegisterRoutes(app fiber.Router, api fiber.Router) {
	auth := serverutils.JwtMiddleware(h.jwtSecret)
	admin := serverutils.RequireRole(serverutils.RoleAdmin)

	app.Get("/sse/notifications", auth, h.Subscribe)
	api.Get("/ws", auth, h.ServeWs)

	notif := api.Group("/notifications", auth)
	notif.Get("/", h.List)
	notif.Get("/unread-count", h.UnreadCount)
	notif.Post("/read-all", h.MarkAllRead)
	notif.Post("/:id/read", h.MarkRead)

	adminGroup := api.Group("/admin", auth, admin)
	adminGroup.Post("/notifications/broadcast", h.Broadcast)
	adminGroup.Post("/notifications/target", h.SendToUser)
	adminGroup.Get("/sse/active-users", h.ActiveUsers)
}

// Subscribe opens a text/event-stream channel. The first frame is always the
// connected confirmation.
func (h *NotificationHandler) Subscribe(c *fiber.Ctx) error {
	username := serverutils.Username(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	conn := h.registry.Register(username, realtime.ConnectedEvent())
	h.logger.Info(handlerModule, "SSE subscribed", map[string]interface{}{"username": username, "connection_id": conn.ID.String()})

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		realtime.StreamSSE(conn, w, h.heartbeat)
		h.logger.Info(handlerModule, "SSE stream ended", map[string]interface{}{"username": username, "reason": string(conn.Reason())})
	}))
	return nil
}

// ServeWs upgrades to a WebSocket channel sharing the registry with SSE.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	username := serverutils.Username(c)

	return websocket.New(func(ws *websocket.Conn) {
		conn := h.registry.Register(username, realtime.ConnectedEvent())
		h.logger.Info(handlerModule, "Starting WebSocket session", map[string]interface{}{"username": username, "connection_id": conn.ID.String()})
		realtime.ServeWebSocket(conn, ws, h.heartbeat)
		h.logger.Info(handlerModule, "WebSocket session ended", map[string]interface{}{"username": username, "reason": string(conn.Reason())})
	})(c)
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	views, err := h.service.List(c.UserContext(), serverutils.Username(c), c.QueryInt("size", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(serverutils.SuccessResponse("Success get notifications", views))
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(c.UserContext(), serverutils.Username(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(serverutils.SuccessResponse("Success get unread count", dto.UnreadCountResponse{Count: count}))
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid notification id")
	}

	if err := h.service.MarkRead(c.UserContext(), serverutils.Username(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(serverutils.SuccessResponse[any]("Notification marked as read", nil))
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	marked, err := h.service.MarkAllRead(c.UserContext(), serverutils.Username(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(serverutils.SuccessResponse("All notifications marked as read", dto.MarkAllReadResponse{Marked: marked}))
}

func (h *NotificationHandler) Broadcast(c *fiber.Ctx) error {
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	sender := serverutils.Username(c)
	res, replayed, err := h.idempotency.Do(c.UserContext(), "broadcast:"+sender, c.Get(HeaderIdempotencyKey), func(ctx context.Context) (*dto.AdminSendResult, error) {
		msg, err := h.service.Broadcast(ctx, sender, req.Title, req.Body)
		if err != nil {
			return nil, err
		}
		return &dto.AdminSendResult{Message: msg}, nil
	})
	if err != nil {
		return h.fail(c, err)
	}

	if replayed {
		c.Set(HeaderReplayed, "true")
	}
	return c.JSON(serverutils.SuccessResponse("Broadcast sent", res.Message))
}

func (h *NotificationHandler) SendToUser(c *fiber.Ctx) error {
	var req dto.TargetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	sender := serverutils.Username(c)
	res, replayed, err := h.idempotency.Do(c.UserContext(), "target:"+sender, c.Get(HeaderIdempotencyKey), func(ctx context.Context) (*dto.AdminSendResult, error) {
		return h.service.SendToUser(ctx, sender, req.TargetUsername, req.Title, req.Body)
	})
	if err != nil {
		return h.fail(c, err)
	}

	if replayed {
		c.Set(HeaderReplayed, "true")
	}
	return c.JSON(serverutils.SuccessResponse("Notification sent", res))
}

func (h *NotificationHandler) ActiveUsers(c *fiber.Ctx) error {
	return c.JSON(serverutils.SuccessResponse("Active SSE users", h.service.ActiveUsers()))
}

// fail maps service errors onto HTTP statuses; anything unrecognized is a
// persistence failure and is logged before the generic 500.
func (h *NotificationHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Notification not found")
	case errors.Is(err, service.ErrInvalidTarget):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRequestInFlight):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	h.logger.Error(handlerModule, "Request failed", map[string]interface{}{
		"path":  c.Path(),
		"error": err,
	})
	return err
}
