package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/delivery/http/middleware"
	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/errors"
	"github.com/droszt-service/internal/pkg/utils"
	"github.com/droszt-service/internal/pkg/validator"
	"github.com/droszt-service/internal/usecase"
	"github.com/droszt-service/internal/usecase/dto"
)

// QueueHandler - операции водителя над очередями
type QueueHandler struct {
	queue   *usecase.QueueUseCase
	devices *usecase.DeviceManager
	logger  *zap.Logger
}

func NewQueueHandler(queue *usecase.QueueUseCase, devices *usecase.DeviceManager, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{queue: queue, devices: devices, logger: logger}
}

func (h *QueueHandler) session(c *fiber.Ctx) (*usecase.Session, error) {
	d, err := h.devices.Ensure(c.Context(), middleware.Actor(c))
	if err != nil {
		return nil, err
	}
	return d.Session, nil
}

// GetQueue godoc
// @Summary Текущий порядок очереди
// @Tags Queues
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Success 200 {object} dto.QueueResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/queues/{queue} [get]
func (h *QueueHandler) GetQueue(c *fiber.Ctx) error {
	snap, err := h.queue.Snapshot(c.Context(), c.Params("queue"))
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, dto.NewQueueResponse(snap), &utils.Meta{
		Total: len(snap.Members),
		Queue: snap.Queue,
	})
}

// CheckIn godoc
// @Summary Встать в очередь
// @Description Проверяет нахождение в зоне; для Emirates нужна запись в Reptér
// @Tags Queues
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Success 200 {object} dto.QueueResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/v1/queues/{queue}/checkin [post]
func (h *QueueHandler) CheckIn(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	member, err := h.queue.ComposeMember(c.Context(), sess.Actor.UID)
	if err != nil {
		h.logger.Error("failed to compose member", zap.String("uid", sess.Actor.UID), zap.Error(err))
		return utils.SendError(c, err)
	}
	name := c.Params("queue")
	if err := h.queue.CheckIn(c.Context(), sess, name, member); err != nil {
		return utils.SendError(c, err)
	}
	return h.GetQueue(c)
}

// CheckOut godoc
// @Summary Выйти из очереди
// @Description Без uid - собственный checkout, который можно отменить «огоньком»
// @Tags Queues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Param request body dto.CheckOutRequest false "Кого снять"
// @Success 200 {object} dto.QueueResponse
// @Router /api/v1/queues/{queue}/checkout [post]
func (h *QueueHandler) CheckOut(c *fiber.Ctx) error {
	var req dto.CheckOutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, errors.ErrInvalidRequest)
		}
		if err := validator.Validate(&req); err != nil {
			return utils.SendError(c, err)
		}
	}
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	uid := req.UID
	if uid == "" {
		uid = sess.Actor.UID
	}
	if err := h.queue.CheckOut(c.Context(), sess, c.Params("queue"), uid); err != nil {
		return utils.SendError(c, err)
	}
	return h.GetQueue(c)
}

// Flame godoc
// @Summary Вернуться на прежнее место
// @Description Отменяет последний собственный checkout из этой очереди
// @Tags Queues
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Success 200 {object} dto.QueueResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/v1/queues/{queue}/flame [post]
func (h *QueueHandler) Flame(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.queue.Reinsert(c.Context(), sess, c.Params("queue")); err != nil {
		return utils.SendError(c, err)
	}
	return h.GetQueue(c)
}

// ToggleMarker godoc
// @Summary Переключить маркер еды/телефона
// @Tags Queues
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Success 200 {object} dto.QueueResponse
// @Router /api/v1/queues/{queue}/marker [post]
func (h *QueueHandler) ToggleMarker(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.queue.ToggleMarker(c.Context(), sess, c.Params("queue")); err != nil {
		return utils.SendError(c, err)
	}
	return h.GetQueue(c)
}

// CheckoutAll godoc
// @Summary Выйти из всех очередей
// @Tags Queues
// @Accept json
// @Security BearerAuth
// @Param request body dto.CheckoutAllRequest false "Очереди, которые не трогать"
// @Success 204
// @Router /api/v1/checkout-all [post]
func (h *QueueHandler) CheckoutAll(c *fiber.Ctx) error {
	var req dto.CheckoutAllRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, errors.ErrInvalidRequest)
		}
		if err := validator.Validate(&req); err != nil {
			return utils.SendError(c, err)
		}
	}
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.queue.CheckoutFromAll(c.Context(), sess, sess.Actor.UID, req.Exclude...); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateProfile godoc
// @Summary Перезаписать профиль во всех очередях
// @Description Позиция и маркеры сохраняются, меняются позывной, номер и тип
// @Tags Queues
// @Accept json
// @Security BearerAuth
// @Param request body dto.ProfileUpdateRequest true "Новый профиль"
// @Success 204
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/profile [put]
func (h *QueueHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest)
	}
	if err := validator.Validate(&req); err != nil {
		return utils.SendError(c, err)
	}
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	profile := domain.Profile{
		UID:          sess.Actor.UID,
		Username:     req.Username,
		LicensePlate: req.LicensePlate,
		UserType:     domain.UserType(req.UserType),
	}
	if err := h.queue.PropagateProfileUpdate(c.Context(), sess, profile); err != nil {
		// перезапись best-effort, ошибка только в лог
		h.logger.Warn("profile propagation incomplete", zap.String("uid", profile.UID), zap.Error(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
