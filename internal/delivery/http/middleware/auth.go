package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/auth"
	"github.com/droszt-service/internal/pkg/errors"
	"github.com/droszt-service/internal/pkg/utils"
)

const actorKey = "actor"

// HeaderDeviceID - идентификатор установки для токенов без claim did
const HeaderDeviceID = "X-Device-ID"

// RevocationChecker - момент последнего принудительного выхода установки
type RevocationChecker interface {
	RevokedBefore(ctx context.Context, deviceKey string) (time.Time, error)
}

// Auth проверяет bearer токен и кладёт Actor в Locals.
// Установка берётся из claim did, затем из X-Device-ID.
// Токены, выпущенные до принудительного выхода этой установки, отклоняются.
func Auth(secret string, revocations RevocationChecker, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return utils.SendError(c, errors.ErrUnauthorized)
		}

		claims, err := auth.Parse(secret, raw)
		if err != nil {
			logger.Debug("token rejected", zap.Error(err))
			return utils.SendError(c, errors.ErrUnauthorized)
		}

		actor := claims.Actor()
		if actor.Device == "" {
			actor.Device = c.Get(HeaderDeviceID)
		}
		actor.Device = domain.NormalizeDevice(actor.Device)

		if revocations != nil {
			revokedAt, err := revocations.RevokedBefore(c.UserContext(), actor.DeviceKey())
			if err != nil {
				logger.Error("revocation lookup failed", zap.String("uid", claims.UID), zap.Error(err))
				return utils.SendError(c, errors.ErrInternalServer)
			}
			if !revokedAt.IsZero() && !claims.IssuedAt().After(revokedAt) {
				return utils.SendError(c, errors.ErrUnauthorized)
			}
		}

		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// AdminOnly пропускает только администраторов
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Actor(c).Admin {
			return utils.SendError(c, errors.ErrForbidden)
		}
		return c.Next()
	}
}

// Actor - пользователь запроса; пустой, если Auth не выполнялся
func Actor(c *fiber.Ctx) domain.Actor {
	a, _ := c.Locals(actorKey).(domain.Actor)
	return a
}
