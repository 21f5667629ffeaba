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

// NotesHandler - заказы аэропорта. Заметки есть только у Reptér.
type NotesHandler struct {
	notes   *usecase.NotesUseCase
	devices *usecase.DeviceManager
	logger  *zap.Logger
}

func NewNotesHandler(notes *usecase.NotesUseCase, devices *usecase.DeviceManager, logger *zap.Logger) *NotesHandler {
	return &NotesHandler{notes: notes, devices: devices, logger: logger}
}

// RepterOnly отклоняет заметки любой другой очереди
func RepterOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Params("queue") != domain.QueueRepter {
			return utils.SendError(c, errors.ErrUnknownQueue)
		}
		return c.Next()
	}
}

func (h *NotesHandler) session(c *fiber.Ctx) (*usecase.Session, error) {
	d, err := h.devices.Ensure(c.Context(), middleware.Actor(c))
	if err != nil {
		return nil, err
	}
	return d.Session, nil
}

func (h *NotesHandler) respond(c *fiber.Ctx, notes []string, err error) error {
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, dto.NotesResponse{Notes: notes}, &utils.Meta{
		Total: len(notes),
		Queue: domain.QueueRepter,
	})
}

// List godoc
// @Summary Заказы аэропорта
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.NotesResponse
// @Router /api/v1/queues/Reptér/notes [get]
func (h *NotesHandler) List(c *fiber.Ctx) error {
	notes, err := h.notes.List(c.Context())
	return h.respond(c, notes, err)
}

// Add godoc
// @Summary Добавить заказ в начало списка
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.NoteRequest true "Текст"
// @Success 200 {object} dto.NotesResponse
// @Router /api/v1/queues/Reptér/notes [post]
func (h *NotesHandler) Add(c *fiber.Ctx) error {
	var req dto.NoteRequest
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
	notes, err := h.notes.Add(c.Context(), sess, req.Text)
	return h.respond(c, notes, err)
}

// Update godoc
// @Summary Изменить заказ
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param index path int true "Позиция"
// @Param request body dto.NoteRequest true "Текст"
// @Success 200 {object} dto.NotesResponse
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/queues/Reptér/notes/{index} [put]
func (h *NotesHandler) Update(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return utils.SendError(c, errors.ErrInvalidNoteIndex)
	}
	var req dto.NoteRequest
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
	notes, err := h.notes.Update(c.Context(), sess, index, req.Text)
	return h.respond(c, notes, err)
}

// Delete godoc
// @Summary Удалить заказ
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param index path int true "Позиция"
// @Success 200 {object} dto.NotesResponse
// @Router /api/v1/queues/Reptér/notes/{index} [delete]
func (h *NotesHandler) Delete(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return utils.SendError(c, errors.ErrInvalidNoteIndex)
	}
	sess, err := h.session(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	notes, err := h.notes.Delete(c.Context(), sess, index)
	return h.respond(c, notes, err)
}

// Move godoc
// @Summary Переставить заказ
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.MoveNoteRequest true "Откуда и куда"
// @Success 200 {object} dto.NotesResponse
// @Router /api/v1/queues/Reptér/notes/move [post]
func (h *NotesHandler) Move(c *fiber.Ctx) error {
	var req dto.MoveNoteRequest
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
	notes, err := h.notes.Move(c.Context(), sess, req.From, req.To)
	return h.respond(c, notes, err)
}
