package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"studentchat_backend/internals/features/broadcast"
	onecClient "studentchat_backend/internals/features/onec/client"
	authDTO "studentchat_backend/internals/features/users/auth/dto"
	authService "studentchat_backend/internals/features/users/auth/service"
	syncService "studentchat_backend/internals/features/users/sync"
	userModel "studentchat_backend/internals/features/users/user/model"
	helper "studentchat_backend/internals/helpers"
)

type AuthController struct {
	DB        *gorm.DB
	Log       *zap.Logger
	OneC      *onecClient.Client
	Broadcast broadcast.Broadcaster
}

func NewAuthController(db *gorm.DB, log *zap.Logger, oc *onecClient.Client, bc broadcast.Broadcaster) *AuthController {
	return &AuthController{DB: db, Log: log, OneC: oc, Broadcast: bc}
}

// CheckStudentCode memvalidasi kode студент sebelum form registrasi
// lanjut ke langkah username/password.
func (ac *AuthController) CheckStudentCode(c *fiber.Ctx) error {
	var req authDTO.CheckStudentCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	rec, err := syncService.CheckStudentCode(c.UserContext(), ac.DB, ac.OneC, req.Code, req.Group)
	if err != nil {
		return ac.respondOneCError(c, err)
	}

	return helper.Success(c, "Код подтверждён", fiber.Map{
		"code":       rec.Code,
		"last_name":  rec.LastName,
		"first_name": rec.FirstName,
		"group":      rec.Group.Name,
		"department": rec.Department.Name,
	})
}

// CheckTeacherCode — analog untuk преподаватель.
func (ac *AuthController) CheckTeacherCode(c *fiber.Ctx) error {
	var req authDTO.CheckTeacherCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	rec, err := syncService.CheckTeacherCode(c.UserContext(), ac.DB, ac.OneC, req.Code)
	if err != nil {
		return ac.respondOneCError(c, err)
	}

	return helper.Success(c, "Код подтверждён", fiber.Map{
		"code":       rec.Code,
		"last_name":  rec.LastName,
		"first_name": rec.FirstName,
		"department": rec.Department.Name,
	})
}

// RegisterStudent: verifikasi kode di Directory lalu klaim akun.
func (ac *AuthController) RegisterStudent(c *fiber.Ctx) error {
	var req authDTO.RegisterStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	rec, err := syncService.CheckStudentCode(c.UserContext(), ac.DB, ac.OneC, req.Code, req.Group)
	if err != nil {
		return ac.respondOneCError(c, err)
	}

	user, err := syncService.RegisterStudent(c.UserContext(), ac.DB, ac.Log, ac.Broadcast, rec, req.Username, req.Password)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	return ac.respondWithToken(c, fiber.StatusCreated, "Регистрация выполнена", user)
}

// RegisterTeacher: verifikasi kode lalu klaim akun (atau aktivasi placeholder).
func (ac *AuthController) RegisterTeacher(c *fiber.Ctx) error {
	var req authDTO.RegisterTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	rec, err := syncService.CheckTeacherCode(c.UserContext(), ac.DB, ac.OneC, req.Code)
	if err != nil {
		return ac.respondOneCError(c, err)
	}

	user, err := syncService.RegisterTeacher(c.UserContext(), ac.DB, ac.Log, ac.Broadcast, rec, req.Username, req.Password)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	return ac.respondWithToken(c, fiber.StatusCreated, "Регистрация выполнена", user)
}

// Login memverifikasi kredensial, lalu menjalankan satu pass sinkronisasi
// 1C best effort — 1C mati tidak menghalangi login.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req authDTO.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	var user userModel.UserModel
	err := ac.DB.Where("username = ?", req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return helper.Error(c, fiber.StatusUnauthorized, "Неверное имя пользователя или пароль")
	}
	if err != nil {
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
	if !user.IsActive || user.IsPlaceholder() {
		return helper.Error(c, fiber.StatusUnauthorized, "Неверное имя пользователя или пароль")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return helper.Error(c, fiber.StatusUnauthorized, "Неверное имя пользователя или пароль")
	}

	if err := syncService.SyncOnLogin(c.UserContext(), ac.DB, ac.Log, ac.Broadcast, ac.OneC, &user); err != nil {
		ac.Log.Warn("sync login error", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	return ac.respondWithToken(c, fiber.StatusOK, "Вход выполнен", &user)
}

// GetMe mengembalikan profil user yang sedang login.
func (ac *AuthController) GetMe(c *fiber.Ctx) error {
	userID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	var user userModel.UserModel
	if err := ac.DB.First(&user, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.Error(c, fiber.StatusNotFound, "Пользователь не найден")
		}
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
	return helper.Success(c, "OK", user)
}

// Logout menghapus cookie access token.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return helper.Success(c, "Выход выполнен", nil)
}

func (ac *AuthController) respondWithToken(c *fiber.Ctx, code int, message string, user *userModel.UserModel) error {
	token, err := authService.CreateAccessToken(user)
	if err != nil {
		ac.Log.Error("sign token gagal", zap.Error(err))
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Expires:  time.Now().Add(72 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return helper.SuccessWithCode(c, code, message, fiber.Map{
		"access_token": token,
		"user":         user,
	})
}

// respondOneCError memetakan error dari jalur 1C: rate limit → 429,
// *fiber.Error apa adanya, sisanya 502 (Directory bermasalah).
func (ac *AuthController) respondOneCError(c *fiber.Ctx, err error) error {
	var rle *onecClient.RateLimitError
	if errors.As(err, &rle) {
		return helper.RateLimited(c, rle.Error(), rle.RetryAfter)
	}
	if fe, ok := err.(*fiber.Error); ok {
		return helper.Error(c, fe.Code, fe.Message)
	}
	ac.Log.Error("1C error", zap.Error(err))
	return helper.Error(c, fiber.StatusBadGateway, "Справочник 1С временно недоступен")
}
