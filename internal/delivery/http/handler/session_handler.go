package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/delivery/http/middleware"
	"github.com/droszt-service/internal/pkg/utils"
	"github.com/droszt-service/internal/usecase"
	"github.com/droszt-service/internal/usecase/dto"
)

// SessionHandler - вход и выход на устройстве
type SessionHandler struct {
	devices *usecase.DeviceManager
	signOut *usecase.SignOutUseCase
	logger  *zap.Logger
}

func NewSessionHandler(devices *usecase.DeviceManager, signOut *usecase.SignOutUseCase, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{devices: devices, signOut: signOut, logger: logger}
}

// BeginSession godoc
// @Summary Начать сессию устройства
// @Description Выдаёт новый токен сессии установки (claim did или заголовок X-Device-ID); другое устройство того же водителя будет выкинуто
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Param X-Device-ID header string false "Идентификатор установки"
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /api/v1/session [post]
func (h *SessionHandler) BeginSession(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	_, token, err := h.devices.BeginSession(c.Context(), actor)
	if err != nil {
		h.logger.Error("failed to begin session", zap.String("uid", actor.UID), zap.Error(err))
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, dto.SessionResponse{
		UID:          actor.UID,
		Admin:        actor.Admin,
		DeviceID:     actor.Device,
		SessionToken: token,
	}, nil)
}

// SignOut godoc
// @Summary Выйти
// @Description Снимает со всех очередей, удаляет живую координату и стирает идентичность устройства
// @Tags Session
// @Security BearerAuth
// @Success 204
// @Router /api/v1/session [delete]
func (h *SessionHandler) SignOut(c *fiber.Ctx) error {
	actor := middleware.Actor(c)
	if err := h.signOut.SignOut(c.Context(), actor.UID, h.devices.Local(actor)); err != nil {
		// шаги выхода независимы, частичный сбой не мешает клиенту выйти
		h.logger.Warn("sign-out finished with errors", zap.String("uid", actor.UID), zap.Error(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
