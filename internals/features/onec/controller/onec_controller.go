package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	academicsService "studentchat_backend/internals/features/academics/service"
	onecClient "studentchat_backend/internals/features/onec/client"
	onecDTO "studentchat_backend/internals/features/onec/dto"
	syncService "studentchat_backend/internals/features/users/sync"
	helper "studentchat_backend/internals/helpers"
)

/* ==========================
   Admin proxy ke Directory 1C

   Read = pass-through. Write = tulis ke Directory dulu (sumber
   kebenaran), lalu cerminkan ke tabel lokal pakai Код yang
   dikembalikan — jadi entitas langsung resolvable tanpa nunggu
   login/registrasi berikutnya.
========================== */

type OneCController struct {
	DB   *gorm.DB
	Log  *zap.Logger
	OneC *onecClient.Client
}

func NewOneCController(db *gorm.DB, log *zap.Logger, oc *onecClient.Client) *OneCController {
	return &OneCController{DB: db, Log: log, OneC: oc}
}

/* ==========================
   Reads
========================== */

func (oc *OneCController) GetDepartments(c *fiber.Ctx) error {
	refs, err := oc.OneC.GetDepartments(c.UserContext())
	if err != nil {
		return oc.respondOneCError(c, err)
	}
	return helper.Success(c, "OK", refsOut(refs))
}

func (oc *OneCController) GetGroups(c *fiber.Ctx) error {
	refs, err := oc.OneC.GetGroups(c.UserContext())
	if err != nil {
		return oc.respondOneCError(c, err)
	}
	return helper.Success(c, "OK", refsOut(refs))
}

func (oc *OneCController) GetDisciplines(c *fiber.Ctx) error {
	refs, err := oc.OneC.GetDisciplines(c.UserContext())
	if err != nil {
		return oc.respondOneCError(c, err)
	}
	return helper.Success(c, "OK", refsOut(refs))
}

func (oc *OneCController) GetTeachers(c *fiber.Ctx) error {
	teachers, err := oc.OneC.GetTeachers(c.UserContext())
	if err != nil {
		return oc.respondOneCError(c, err)
	}
	return helper.Success(c, "OK", peopleOut(teachers))
}

func (oc *OneCController) GetStudents(c *fiber.Ctx) error {
	students, err := oc.OneC.GetStudents(c.UserContext())
	if err != nil {
		return oc.respondOneCError(c, err)
	}
	return helper.Success(c, "OK", peopleOut(students))
}

/* ==========================
   Writes
========================== */

type namedCreateRequest struct {
	Name string `json:"name"`
}

func (oc *OneCController) CreateDepartment(c *fiber.Ctx) error {
	var req namedCreateRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return helper.Error(c, fiber.StatusBadRequest, "Поле name обязательно")
	}

	code, err := oc.OneC.CreateDepartment(c.UserContext(), req.Name)
	if err != nil {
		return oc.respondOneCError(c, err)
	}

	if _, err := academicsService.ResolveDepartment(oc.DB, onecDTO.Ref{Code: &code, Name: req.Name}); err != nil {
		oc.Log.Warn("mirror kafedra gagal", zap.String("code", code), zap.Error(err))
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "Кафедра создана", fiber.Map{"code": code, "name": req.Name})
}

func (oc *OneCController) CreateGroup(c *fiber.Ctx) error {
	var req namedCreateRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return helper.Error(c, fiber.StatusBadRequest, "Поле name обязательно")
	}

	code, err := oc.OneC.CreateGroup(c.UserContext(), req.Name)
	if err != nil {
		return oc.respondOneCError(c, err)
	}

	if _, err := academicsService.ResolveGroup(oc.DB, onecDTO.Ref{Code: &code, Name: req.Name}, nil); err != nil {
		oc.Log.Warn("mirror grup gagal", zap.String("code", code), zap.Error(err))
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "Группа создана", fiber.Map{"code": code, "name": req.Name})
}

func (oc *OneCController) CreateDiscipline(c *fiber.Ctx) error {
	var req namedCreateRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return helper.Error(c, fiber.StatusBadRequest, "Поле name обязательно")
	}

	code, err := oc.OneC.CreateDiscipline(c.UserContext(), req.Name)
	if err != nil {
		return oc.respondOneCError(c, err)
	}

	if _, err := academicsService.ResolveDiscipline(oc.DB, onecDTO.Ref{Code: &code, Name: req.Name}, nil); err != nil {
		oc.Log.Warn("mirror disiplin gagal", zap.String("code", code), zap.Error(err))
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "Дисциплина создана", fiber.Map{"code": code, "name": req.Name})
}

func (oc *OneCController) CreateTeacher(c *fiber.Ctx) error {
	var req onecDTO.CreateTeacherInput
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	code, err := oc.OneC.CreateTeacher(c.UserContext(), req)
	if err != nil {
		return oc.respondOneCError(c, err)
	}

	// Placeholder lokal supaya студент yang menyebut преподаватель ini
	// langsung dapat edge + kontak yang benar.
	ref := onecDTO.TeacherRef{
		Code:       &code,
		LastName:   req.LastName,
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
	}
	if _, err := syncService.EnsurePlaceholderTeacher(oc.DB, ref); err != nil {
		oc.Log.Warn("mirror placeholder преподаватель gagal", zap.String("code", code), zap.Error(err))
	}

	return helper.SuccessWithCode(c, fiber.StatusCreated, "Преподаватель создан", fiber.Map{"code": code})
}

func (oc *OneCController) CreateStudent(c *fiber.Ctx) error {
	var req onecDTO.CreateStudentInput
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "Body tidak valid")
	}
	if err := req.Validate(); err != nil {
		return helper.ValidationError(c, err)
	}

	code, err := oc.OneC.CreateStudent(c.UserContext(), req)
	if err != nil {
		return oc.respondOneCError(c, err)
	}

	// Kafedra + grup dicerminkan, plus akun placeholder yang akan
	// diklaim студент saat registrasi dengan kode ini.
	dept, err := academicsService.ResolveDepartment(oc.DB, onecDTO.Ref{Name: req.Department})
	if err != nil {
		oc.Log.Warn("mirror kafedra gagal", zap.Error(err))
	} else if _, err := academicsService.ResolveGroup(oc.DB, onecDTO.Ref{Name: req.Group}, &dept.ID); err != nil {
		oc.Log.Warn("mirror grup gagal", zap.Error(err))
	}
	if _, err := syncService.EnsurePlaceholderStudent(oc.DB, code, req.LastName, req.FirstName, req.MiddleName, req.Department, req.Group); err != nil {
		oc.Log.Warn("mirror placeholder студент gagal", zap.String("code", code), zap.Error(err))
	}

	return helper.SuccessWithCode(c, fiber.StatusCreated, "Студент создан", fiber.Map{"code": code})
}

/* ==========================
   Helpers
========================== */

func refsOut(refs []onecDTO.Ref) []fiber.Map {
	out := make([]fiber.Map, 0, len(refs))
	for _, r := range refs {
		m := fiber.Map{"name": r.Name}
		if r.HasCode() {
			m["code"] = *r.Code
		}
		out = append(out, m)
	}
	return out
}

func peopleOut(people []onecDTO.TeacherRef) []fiber.Map {
	out := make([]fiber.Map, 0, len(people))
	for _, p := range people {
		m := fiber.Map{
			"last_name":   p.LastName,
			"first_name":  p.FirstName,
			"middle_name": p.MiddleName,
		}
		if p.HasCode() {
			m["code"] = *p.Code
		}
		out = append(out, m)
	}
	return out
}

func (oc *OneCController) respondOneCError(c *fiber.Ctx, err error) error {
	var rle *onecClient.RateLimitError
	if errors.As(err, &rle) {
		return helper.RateLimited(c, rle.Error(), rle.RetryAfter)
	}
	if errors.Is(err, onecClient.ErrNotFound) {
		return helper.Error(c, fiber.StatusNotFound, "Запись не найдена в справочнике")
	}
	oc.Log.Error("1C error", zap.Error(err))
	return helper.Error(c, fiber.StatusBadGateway, "Справочник 1С временно недоступен")
}
