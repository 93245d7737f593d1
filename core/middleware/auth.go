package middleware

import (
	"smartschedule/core/controller"
	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/core/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const ContextTokenData = "token_data"

// AuthMiddleware requires a valid access token and stores its claims on the context.
func AuthMiddleware() echo.MiddlewareFunc {
	base := controller.NewBaseController()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, appErr := utils.GetTokenFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if appErr != nil {
				return base.ErrorResponse(c, appErr)
			}

			claims, appErr := utils.ValidateAndParseToken(token)
			if appErr != nil {
				logger.Warn("AuthMiddleware:ValidateToken:Failed", "error", appErr)
				return base.ErrorResponse(c, appErr)
			}

			c.Set(ContextTokenData, claims)
			return next(c)
		}
	}
}

// GetUserID returns the authenticated user's id from the context.
func GetUserID(c echo.Context) (uuid.UUID, *errors.AppError) {
	tokenData := c.Get(ContextTokenData)
	if tokenData == nil {
		return uuid.Nil, errors.NewAppError(errors.ErrUnauthorized, "User not authenticated", nil)
	}
	claims, ok := tokenData.(*utils.TokenClaims)
	if !ok {
		return uuid.Nil, errors.NewAppError(errors.ErrUnauthorized, "Invalid token data format", nil)
	}
	return claims.UserID, nil
}
