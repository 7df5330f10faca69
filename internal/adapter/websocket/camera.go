package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seu-repo/voz-visible/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/ports"
)

// Client events
const (
	EventStartCamera  = "start_camera"
	EventStopCamera   = "stop_camera"
	EventProcessFrame = "process_frame"
)

// Server events
const (
	EventStatus       = "status"
	EventCameraStatus = "camera_status"
	EventPrediction   = "prediction"
	EventTranslation  = "translation"
)

const msgUnavailable = "Sistema no disponible"

// Message is the envelope of every socket message in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type framePayload struct {
	Frame            string `json:"frame"`
	IncludeLandmarks bool   `json:"include_landmarks"`
}

// CameraConfig tunes the camera socket.
type CameraConfig struct {
	Limits handlers.Limits
	// MaxFPS caps frames handled per connection. Frames above the cap are
	// dropped without a reply.
	MaxFPS float64
	// OnClose runs with the session id when a camera session ends.
	OnClose func(sessionID string)
}

// CameraHandler serves one camera session per websocket connection.
type CameraHandler struct {
	service ports.PredictionService
	cfg     CameraConfig
	logger  *zap.Logger
}

func NewCameraHandler(service ports.PredictionService, cfg CameraConfig, logger *zap.Logger) *CameraHandler {
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = 15
	}
	return &CameraHandler{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
}

type cameraSession struct {
	ctx     context.Context
	id      string
	userID  string
	limiter *rate.Limiter
	conn    *websocket.Conn
}

// HandleCamera runs the read loop for one connection. Each frame is handled
// synchronously so a session never has two frames in flight.
func (h *CameraHandler) HandleCamera(c *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &cameraSession{
		ctx:     ctx,
		id:      sessionIDFrom(c),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.MaxFPS), 1),
		conn:    c,
	}
	s.userID, _ = c.Locals("user_id").(string)

	log := h.logger.With(zap.String("session_id", s.id))
	log.Info("Camera client connected")
	defer func() {
		if h.cfg.OnClose != nil {
			h.cfg.OnClose(s.id)
		}
		log.Info("Camera client disconnected")
	}()

	status := h.service.Status()
	if err := s.emit(EventStatus, fiber.Map{
		"status":     status.State,
		"message":    status.Message,
		"session_id": s.id,
	}); err != nil {
		return
	}

	for {
		messageType, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Camera socket read failed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = s.emit(EventPrediction, errorBody("mensaje inválido"))
			continue
		}

		if err := h.dispatch(s, msg, log); err != nil {
			log.Warn("Camera socket write failed", zap.Error(err))
			return
		}
	}
}

func (h *CameraHandler) dispatch(s *cameraSession, msg Message, log *zap.Logger) error {
	switch msg.Event {
	case EventStartCamera:
		if !h.service.IsReady() {
			return s.emit(EventCameraStatus, errorBody(msgUnavailable))
		}
		return s.emit(EventCameraStatus, fiber.Map{"status": "started", "message": "Cámara iniciada"})

	case EventStopCamera:
		if h.cfg.OnClose != nil {
			h.cfg.OnClose(s.id)
		}
		return s.emit(EventCameraStatus, fiber.Map{"status": "stopped", "message": "Cámara detenida"})

	case EventProcessFrame:
		if !s.limiter.Allow() {
			return nil
		}
		return s.emit(EventPrediction, h.processFrame(s, msg.Data, log))

	default:
		return s.emit(EventPrediction, errorBody("evento desconocido"))
	}
}

func (h *CameraHandler) processFrame(s *cameraSession, data json.RawMessage, log *zap.Logger) fiber.Map {
	if !h.service.IsReady() {
		return errorBody(msgUnavailable)
	}

	var payload framePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Frame == "" {
		return errorBody("frame requerido")
	}
	raw, contentType, err := handlers.DecodeImage(payload.Frame, h.cfg.Limits)
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return errorBody(fe.Message)
		}
		return errorBody("frame inválido")
	}

	res, err := h.service.Handle(s.ctx, domain.Frame{Data: raw, ContentType: contentType}, ports.HandleOptions{
		SessionID:     s.id,
		UserID:        s.userID,
		IncludeExtras: payload.IncludeLandmarks,
	})
	if err != nil {
		log.Warn("Frame prediction failed", zap.Error(err))
		return errorBody("Error procesando frame")
	}

	switch res.Status {
	case domain.StatusUnavailable:
		return errorBody(msgUnavailable)
	case domain.StatusSkipped:
		return fiber.Map{"status": "waiting"}
	}
	body := handlers.PredictionBody(res.Response)
	if audio, ok := body["audio"].(string); ok {
		body["audio"] = "data:" + domain.AudioMIME + ";base64," + audio
	}
	return body
}

func (s *cameraSession) emit(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	out, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, out)
}

func errorBody(message string) fiber.Map {
	return fiber.Map{"status": "error", "message": message}
}

// sessionIDFrom keeps a client supplied id when it is well formed.
func sessionIDFrom(c *websocket.Conn) string {
	if id := c.Query("session_id"); id != "" && handlers.ValidSessionID(id) {
		return id
	}
	return uuid.New().String()
}

// UpgradeRequired rejects plain HTTP requests on websocket routes.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
