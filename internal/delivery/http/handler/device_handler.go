package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/delivery/http/middleware"
	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/pkg/errors"
	"github.com/droszt-service/internal/pkg/utils"
	"github.com/droszt-service/internal/pkg/validator"
	"github.com/droszt-service/internal/usecase"
	"github.com/droszt-service/internal/usecase/dto"
)

// SampleHub раздаёт foreground точки геофенсу устройства
type SampleHub interface {
	Publish(sample domain.LocationSample)
}

// DeviceHandler - точки, callbacks ОС и состояние устройства
type DeviceHandler struct {
	devices   *usecase.DeviceManager
	tracking  *usecase.TrackingUseCase
	heartbeat *usecase.HeartbeatUseCase
	hub       SampleHub
	// streams != nil - фоновые точки уходят в Redis Stream и разбираются воркером
	streams repository.StreamRepository
	clock   clock.Clock
	logger  *zap.Logger
}

func NewDeviceHandler(
	devices *usecase.DeviceManager,
	tracking *usecase.TrackingUseCase,
	heartbeat *usecase.HeartbeatUseCase,
	hub SampleHub,
	streams repository.StreamRepository,
	clk clock.Clock,
	logger *zap.Logger,
) *DeviceHandler {
	return &DeviceHandler{
		devices:   devices,
		tracking:  tracking,
		heartbeat: heartbeat,
		hub:       hub,
		streams:   streams,
		clock:     clk,
		logger:    logger,
	}
}

// Samples godoc
// @Summary Принять точки устройства
// @Description foreground=true - точки подписки приложения, иначе - фоновой задачи
// @Tags Device
// @Accept json
// @Security BearerAuth
// @Param request body dto.BatchSamplesRequest true "Точки"
// @Success 202
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/location/samples [post]
func (h *DeviceHandler) Samples(c *fiber.Ctx) error {
	var req dto.BatchSamplesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest)
	}
	if err := validator.Validate(&req); err != nil {
		return utils.SendError(c, err)
	}
	actor := middleware.Actor(c)
	uid := actor.UID
	local := h.devices.Local(actor)
	now := h.clock.Now()

	for _, r := range req.Samples {
		sample := r.Sample(uid, now)
		sample.Device = actor.Device
		if !sample.Point.Valid() {
			return utils.SendError(c, errors.ErrInvalidCoordinates)
		}
		if req.Foreground {
			h.hub.Publish(sample)
			continue
		}
		if h.streams != nil {
			if err := h.streams.PublishToStream(c.Context(), domain.StreamGPSSamples, sample); err != nil {
				return utils.SendError(c, err)
			}
			continue
		}
		if err := h.tracking.HandleSample(c.Context(), local, sample); err != nil {
			h.logger.Warn("sample handled with errors", zap.String("uid", uid), zap.Error(err))
		}
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// RegionEvent godoc
// @Summary Событие нативного геофенса
// @Tags Device
// @Accept json
// @Security BearerAuth
// @Param request body dto.RegionEventRequest true "Событие"
// @Success 202
// @Router /api/v1/location/region-events [post]
func (h *DeviceHandler) RegionEvent(c *fiber.Ctx) error {
	var req dto.RegionEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest)
	}
	if err := validator.Validate(&req); err != nil {
		return utils.SendError(c, err)
	}
	actor := middleware.Actor(c)
	ev := domain.RegionEvent{
		UID:       actor.UID,
		Device:    actor.Device,
		Region:    req.Region,
		Kind:      domain.RegionEventKind(req.Kind),
		Timestamp: h.clock.Now(),
	}
	if h.streams != nil {
		if err := h.streams.PublishToStream(c.Context(), domain.StreamRegionEvents, ev); err != nil {
			return utils.SendError(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
	if err := h.tracking.HandleRegionEvent(c.Context(), h.devices.Local(actor), ev); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// StartTracking godoc
// @Summary Зарегистрировать фоновую задачу
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.TrackingResponse
// @Failure 412 {object} utils.ErrorResponse
// @Router /api/v1/tracking/start [post]
func (h *DeviceHandler) StartTracking(c *fiber.Ctx) error {
	ok, err := h.tracking.StartLocationTracking(c.Context(), h.devices.Local(middleware.Actor(c)))
	if err != nil {
		return utils.SendError(c, err)
	}
	if !ok {
		return utils.SendError(c, errors.ErrPermissionDenied)
	}
	return utils.SendSuccess(c, dto.TrackingResponse{Active: true}, nil)
}

// StopTracking godoc
// @Summary Снять фоновую задачу
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.TrackingResponse
// @Router /api/v1/tracking/stop [post]
func (h *DeviceHandler) StopTracking(c *fiber.Ctx) error {
	if err := h.tracking.StopLocationTracking(c.Context(), h.devices.Local(middleware.Actor(c))); err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, dto.TrackingResponse{Active: false}, nil)
}

// StartGeofence godoc
// @Summary Запустить foreground геофенс
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.GeofenceStatusResponse
// @Failure 412 {object} utils.ErrorResponse
// @Router /api/v1/geofence/start [post]
func (h *DeviceHandler) StartGeofence(c *fiber.Ctx) error {
	d, err := h.devices.Ensure(c.Context(), middleware.Actor(c))
	if err != nil {
		return utils.SendError(c, err)
	}
	ok, err := d.Geofence.Start(c.Context())
	if err != nil {
		return utils.SendError(c, err)
	}
	if !ok {
		return utils.SendError(c, errors.ErrPermissionDenied)
	}
	return h.status(c, d)
}

// StopGeofence godoc
// @Summary Остановить foreground геофенс
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.GeofenceStatusResponse
// @Router /api/v1/geofence/stop [post]
func (h *DeviceHandler) StopGeofence(c *fiber.Ctx) error {
	d, ok := h.devices.Device(middleware.Actor(c).DeviceKey())
	if !ok {
		return utils.SendError(c, errors.ErrSessionNotFound)
	}
	d.Geofence.Stop()
	return h.status(c, d)
}

// GeofenceStatus godoc
// @Summary Статус зон
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.GeofenceStatusResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/geofence/status [get]
func (h *DeviceHandler) GeofenceStatus(c *fiber.Ctx) error {
	d, ok := h.devices.Device(middleware.Actor(c).DeviceKey())
	if !ok {
		return utils.SendError(c, errors.ErrSessionNotFound)
	}
	return h.status(c, d)
}

func (h *DeviceHandler) status(c *fiber.Ctx, d *usecase.Device) error {
	return utils.SendSuccess(c, dto.GeofenceStatusResponse{
		Running: d.Geofence.Running(),
		Zones:   d.Geofence.Statuses(),
	}, nil)
}

// DeviceState godoc
// @Summary Разрешения и видимость приложения
// @Tags Device
// @Accept json
// @Security BearerAuth
// @Param request body dto.DeviceStateRequest true "Изменившиеся поля"
// @Success 204
// @Router /api/v1/device/state [put]
func (h *DeviceHandler) DeviceState(c *fiber.Ctx) error {
	var req dto.DeviceStateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest)
	}
	ctx := c.Context()
	local := h.devices.Local(middleware.Actor(c))

	if req.ForegroundPermission != nil {
		if err := local.Set(ctx, domain.KeyForegroundGranted, permission(*req.ForegroundPermission)); err != nil {
			return utils.SendError(c, err)
		}
	}
	if req.BackgroundPermission != nil {
		if err := local.Set(ctx, domain.KeyBackgroundGranted, permission(*req.BackgroundPermission)); err != nil {
			return utils.SendError(c, err)
		}
	}
	if req.Foreground != nil {
		if err := h.heartbeat.SetForeground(ctx, local, *req.Foreground); err != nil {
			return utils.SendError(c, err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func permission(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}

// HeartbeatRespond godoc
// @Summary Ответ на «Dolgozol még?»
// @Tags Device
// @Accept json
// @Security BearerAuth
// @Param request body dto.HeartbeatResponseRequest true "Ответ"
// @Success 204
// @Router /api/v1/heartbeat/respond [post]
func (h *DeviceHandler) HeartbeatRespond(c *fiber.Ctx) error {
	var req dto.HeartbeatResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest)
	}
	if err := validator.Validate(&req); err != nil {
		return utils.SendError(c, err)
	}
	actor := middleware.Actor(c)
	if err := h.heartbeat.Respond(c.Context(), actor.UID, h.devices.Local(actor), *req.Answer); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
