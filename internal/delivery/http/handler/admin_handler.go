package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/delivery/http/middleware"
	"github.com/droszt-service/internal/pkg/errors"
	"github.com/droszt-service/internal/pkg/utils"
	"github.com/droszt-service/internal/pkg/validator"
	"github.com/droszt-service/internal/usecase"
	"github.com/droszt-service/internal/usecase/dto"
)

// AdminHandler - ручное управление очередями
type AdminHandler struct {
	queue   *usecase.QueueUseCase
	devices *usecase.DeviceManager
	logger  *zap.Logger
}

func NewAdminHandler(queue *usecase.QueueUseCase, devices *usecase.DeviceManager, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{queue: queue, devices: devices, logger: logger}
}

func (h *AdminHandler) session(c *fiber.Ctx) (*usecase.Session, error) {
	d, err := h.devices.Ensure(c.Context(), middleware.Actor(c))
	if err != nil {
		return nil, err
	}
	return d.Session, nil
}

// Reorder godoc
// @Summary Задать порядок очереди
// @Tags Admin
// @Accept json
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Param request body dto.ReorderRequest true "uid в новом порядке"
// @Success 204
// @Failure 403 {object} utils.ErrorResponse
// @Router /api/v1/admin/queues/{queue}/order [put]
func (h *AdminHandler) Reorder(c *fiber.Ctx) error {
	var req dto.ReorderRequest
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
	if err := h.queue.Reorder(c.Context(), sess, c.Params("queue"), req.UIDs); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Kick godoc
// @Summary Убрать водителя из очереди
// @Tags Admin
// @Security BearerAuth
// @Param queue path string true "Имя очереди"
// @Param uid path string true "uid водителя"
// @Success 204
// @Router /api/v1/admin/queues/{queue}/members/{uid} [delete]
func (h *AdminHandler) Kick(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.queue.Kick(c.Context(), sess, c.Params("queue"), c.Params("uid")); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// KickEverywhere godoc
// @Summary Убрать водителя из всех очередей
// @Tags Admin
// @Security BearerAuth
// @Param uid path string true "uid водителя"
// @Success 204
// @Router /api/v1/admin/drivers/{uid}/queues [delete]
func (h *AdminHandler) KickEverywhere(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.queue.KickEverywhere(c.Context(), sess, c.Params("uid")); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
