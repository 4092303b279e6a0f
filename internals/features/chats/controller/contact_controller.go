package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studentchat_backend/internals/features/broadcast"
	chatService "studentchat_backend/internals/features/chats/service"
	userModel "studentchat_backend/internals/features/users/user/model"
	helper "studentchat_backend/internals/helpers"
)

type ContactController struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Broadcast broadcast.Broadcaster
}

func NewContactController(db *gorm.DB, log *zap.Logger, bc broadcast.Broadcaster) *ContactController {
	return &ContactController{DB: db, Log: log, Broadcast: bc}
}

// GetContacts mengembalikan daftar lawan bicara dari chat privat
// terbuka milik user.
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	userID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	ids, err := chatService.GetUserContacts(cc.DB, userID)
	if err != nil {
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
	if len(ids) == 0 {
		return helper.Success(c, "OK", []fiber.Map{})
	}

	var users []userModel.UserModel
	err = cc.DB.
		Select("user_id, username, first_name, last_name, middle_name, role, department, student_group, is_active").
		Where("user_id IN ?", ids).
		Order("last_name, first_name").
		Find(&users).Error
	if err != nil {
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}

	out := make([]fiber.Map, 0, len(users))
	for i := range users {
		u := &users[i]
		out = append(out, fiber.Map{
			"user_id":       u.ID,
			"username":      u.Username,
			"first_name":    u.FirstName,
			"last_name":     u.LastName,
			"middle_name":   u.MiddleName,
			"role":          u.Role,
			"department":    u.Department,
			"student_group": u.StudentGroup,
			"is_active":     u.IsActive,
		})
	}
	return helper.Success(c, "OK", out)
}

type addContactRequest struct {
	ContactID string `json:"contact_id"`
}

// AddContact menambah kontak (membuka / membuat chat privat). Idempotent.
func (cc *ContactController) AddContact(c *fiber.Ctx) error {
	userID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	var req addContactRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	contactID, err := uuid.Parse(req.ContactID)
	if err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "contact_id tidak valid")
	}

	var contact userModel.UserModel
	if err := cc.DB.First(&contact, "user_id = ?", contactID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.Error(c, fiber.StatusNotFound, "Пользователь не найден")
		}
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}

	if err := chatService.AddContact(cc.DB, cc.Log, userID, contactID); err != nil {
		return helper.FromFiberError(c, err)
	}

	if err := cc.Broadcast.Emit(c.UserContext(), broadcast.EventContactAdded, contactID.String(), fiber.Map{
		"user_id": userID.String(),
	}); err != nil {
		cc.Log.Warn("emit contact_added gagal", zap.Error(err))
	}

	return helper.SuccessWithCode(c, fiber.StatusCreated, "Контакт добавлен", fiber.Map{
		"contact_id": contactID,
	})
}

// RemoveContact menutup kontak dari sisi user ini saja.
func (cc *ContactController) RemoveContact(c *fiber.Ctx) error {
	userID, err := helper.GetUserIDFromToken(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	contactID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "ID kontak tidak valid")
	}

	if err := chatService.RemoveContact(cc.DB, cc.Log, userID, contactID); err != nil {
		return helper.Error(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
	return helper.Success(c, "Контакт удалён", nil)
}
