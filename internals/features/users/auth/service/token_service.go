package service

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"studentchat_backend/internals/configs"
	userModel "studentchat_backend/internals/features/users/user/model"
)

// Umur access token. Refresh token belum dipakai — klien chat login ulang.
const accessTokenTTL = 72 * time.Hour

// CreateAccessToken menerbitkan JWT HS256 dengan klaim minimum yang
// dibaca middleware auth (user_id, role, exp).
func CreateAccessToken(user *userModel.UserModel) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"iat":     now.Unix(),
		"exp":     now.Add(accessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(configs.JWTSecret))
}
