package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"studentchat_backend/internals/configs"
	userModel "studentchat_backend/internals/features/users/user/model"
	helper "studentchat_backend/internals/helpers"
)

// AuthMiddleware memverifikasi JWT (Bearer header atau cookie access_token),
// memastikan user masih aktif, dan menaruh user_id + role ke Locals.
func AuthMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := helper.GetRawAccessToken(c)
		if tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Missing token")
		}

		secretKey := configs.JWTSecret
		if secretKey == "" {
			return fiber.NewError(fiber.StatusInternalServerError, "Missing JWT Secret")
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secretKey), nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token parse error")
		}

		if err := validateTokenExpiry(claims, 30*time.Second); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token expired")
		}

		userID, err := extractUserID(claims)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Invalid or missing user ID")
		}

		var user userModel.UserModel
		if err := db.Select("user_id, role, is_active").First(&user, "user_id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - User not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
		}
		if !user.IsActive {
			return fiber.NewError(fiber.StatusForbidden, "Аккаунт деактивирован")
		}

		c.Locals("user_id", userID.String())
		c.Locals("role", user.Role)
		c.Locals(helper.LocRawToken, tokenString)
		return c.Next()
	}
}

// OnlyAdmin dipasang setelah AuthMiddleware.
func OnlyAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != userModel.RoleAdmin {
			return fiber.NewError(fiber.StatusForbidden, "Доступ только для администратора")
		}
		return c.Next()
	}
}

func validateTokenExpiry(claims jwt.MapClaims, leeway time.Duration) error {
	expRaw, ok := claims["exp"]
	if !ok {
		return errors.New("exp claim missing")
	}
	expFloat, ok := expRaw.(float64)
	if !ok {
		return errors.New("exp claim malformed")
	}
	exp := time.Unix(int64(expFloat), 0)
	if time.Now().After(exp.Add(leeway)) {
		return errors.New("token expired")
	}
	return nil
}

func extractUserID(claims jwt.MapClaims) (uuid.UUID, error) {
	raw, ok := claims["user_id"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, errors.New("user_id claim missing")
	}
	return uuid.Parse(strings.TrimSpace(raw))
}
