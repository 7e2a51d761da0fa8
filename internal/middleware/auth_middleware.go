package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"myMarketplace/pkg/logger"
	jsonres "myMarketplace/pkg/response"
	"myMarketplace/pkg/utils"

	"github.com/labstack/echo/v4"
)

const roleAdmin = "ADMIN"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Missing authorization header", nil,
				))
			}

			if !setClaims(c, authHeader, secret) {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid or expired token", nil,
				))
			}

			return next(c)
		}
	}
}

// OptionalAuth lets anonymous requests through. A token that is present
// must still be valid.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			if !setClaims(c, authHeader, secret) {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid or expired token", nil,
				))
			}

			return next(c)
		}
	}
}

func setClaims(c echo.Context, authHeader, secret string) bool {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		logger.Warn("Malformed authorization header", "path", c.Path())
		return false
	}

	claims, err := utils.ParseJWT(parts[1], secret)
	if err != nil {
		logger.Warn("Failed to parse token", "error", err)
		return false
	}

	userID, err := strconv.ParseUint(claims.UserID, 10, 64)
	if err != nil || userID == 0 {
		logger.Warn("Token carries an invalid user id", "user_id", claims.UserID)
		return false
	}

	c.Set("user_id", uint(userID))
	c.Set("role", claims.Role)
	return true
}

// UserID returns the authenticated user, if any.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get("user_id").(uint)
	return id, ok && id != 0
}

func AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role != roleAdmin {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Admin access required", nil,
				))
			}
			return next(c)
		}
	}
}

// SelfOrAdmin allows the owner of the :id path param, or an admin.
func SelfOrAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == roleAdmin {
				return next(c)
			}

			userID, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "User not authenticated", nil,
				))
			}

			paramID, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil {
				return c.JSON(http.StatusBadRequest, jsonres.Error(
					"INVALID_ID", "Invalid user ID", nil,
				))
			}

			if uint(paramID) != userID {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "You can only access your own data", nil,
				))
			}

			return next(c)
		}
	}
}
