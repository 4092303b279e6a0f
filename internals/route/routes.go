package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studentchat_backend/internals/features/broadcast"
	chatController "studentchat_backend/internals/features/chats/controller"
	onecClient "studentchat_backend/internals/features/onec/client"
	onecController "studentchat_backend/internals/features/onec/controller"
	authController "studentchat_backend/internals/features/users/auth/controller"
	authMiddleware "studentchat_backend/internals/middlewares/auth"
)

// SetupRoutes mendaftarkan seluruh route aplikasi.
func SetupRoutes(app *fiber.App, db *gorm.DB, logger *zap.Logger, oc *onecClient.Client, bc broadcast.Broadcaster) {
	authCtrl := authController.NewAuthController(db, logger, oc, bc)
	contactCtrl := chatController.NewContactController(db, logger, bc)
	onecCtrl := onecController.NewOneCController(db, logger, oc)

	api := app.Group("/api")

	// ===================== AUTH (public) =====================
	log.Println("[INFO] Setting up AuthRoutes...")
	auth := api.Group("/auth")
	auth.Post("/check/student", authCtrl.CheckStudentCode)
	auth.Post("/check/teacher", authCtrl.CheckTeacherCode)
	auth.Post("/register/student", authCtrl.RegisterStudent)
	auth.Post("/register/teacher", authCtrl.RegisterTeacher)
	auth.Post("/login", authCtrl.Login)
	auth.Post("/logout", authCtrl.Logout)

	// ===================== PRIVATE (user) =====================
	log.Println("[INFO] Setting up PRIVATE group...")
	private := api.Group("", authMiddleware.AuthMiddleware(db))
	private.Get("/auth/me", authCtrl.GetMe)
	private.Get("/contacts", contactCtrl.GetContacts)
	private.Post("/contacts", contactCtrl.AddContact)
	private.Delete("/contacts/:id", contactCtrl.RemoveContact)

	// ===================== ADMIN (proxy 1C) =====================
	log.Println("[INFO] Setting up ADMIN group (Auth + OnlyAdmin)...")
	admin := api.Group("/onec",
		authMiddleware.AuthMiddleware(db),
		authMiddleware.OnlyAdmin(),
	)
	admin.Get("/departments", onecCtrl.GetDepartments)
	admin.Post("/departments", onecCtrl.CreateDepartment)
	admin.Get("/groups", onecCtrl.GetGroups)
	admin.Post("/groups", onecCtrl.CreateGroup)
	admin.Get("/disciplines", onecCtrl.GetDisciplines)
	admin.Post("/disciplines", onecCtrl.CreateDiscipline)
	admin.Get("/teachers", onecCtrl.GetTeachers)
	admin.Post("/teachers", onecCtrl.CreateTeacher)
	admin.Get("/students", onecCtrl.GetStudents)
	admin.Post("/students", onecCtrl.CreateStudent)
}
