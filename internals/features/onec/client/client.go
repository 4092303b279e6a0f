package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"studentchat_backend/internals/features/onec/dto"
)

/* ==========================
   Directory 1C client

   Satu-satunya pintu ke Directory. Quirk wire yang ditangani di sini:
   - rate limit versi training datang sebagai HTTP 500 dengan frasa
     khusus di body — hanya itu yang di-retry (maks 3x, jeda 10 detik)
   - envelope {success, data, error} + Код top-level saat create
========================== */

const maxAttempts = 3

// var supaya bisa dipendekkan di test.
var limitBackoff = 10 * time.Second

// Frasa di body 500 yang menandai limit versi training / koneksi infobase.
var limitPhrases = []string{
	"Training version limitation reached",
	"Infobase connections limitation reached",
}

// RateLimitError menandai Directory sedang menolak karena limit,
// bukan karena data salah. RetryAfter jadi Retry-After di respons kita.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Справочник 1С перегружен, повторите через %s", e.RetryAfter)
}

// IsRateLimit true kalau err (di mana pun di chain) adalah RateLimitError.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// ErrNotFound: Directory tidak mengenal kode yang diminta.
var ErrNotFound = errors.New("запись не найдена в справочнике 1С")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    newCode         `json:"Код"`
}

// newCode: Код hasil create bisa datang sebagai angka atau string.
type newCode string

func (c *newCode) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*c = newCode(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*c = newCode(num.String())
	return nil
}

type Client struct {
	rst *resty.Client
	log *zap.Logger
}

func New(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	rst := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		rst.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{rst: rst, log: log}
}

func isLimitBody(body string) bool {
	for _, phrase := range limitPhrases {
		if strings.Contains(body, phrase) {
			return true
		}
	}
	return false
}

// do menjalankan satu request dengan retry khusus rate limit.
// Error lain (4xx, 500 biasa, network) tidak di-retry — biar cepat gagal.
func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req := c.rst.R().SetContext(ctx)
		if body != nil {
			req.SetBody(body)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("1C %s %s: %w", method, path, err)
		}

		if resp.StatusCode() == 500 && isLimitBody(string(resp.Body())) {
			lastErr = &RateLimitError{RetryAfter: limitBackoff}
			c.log.Warn("1C rate limited, retry",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts))
			if attempt == maxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(limitBackoff):
			}
			continue
		}

		if resp.StatusCode() == 404 {
			return nil, ErrNotFound
		}
		if resp.IsError() {
			return nil, fmt.Errorf("1C %s %s: status %d: %s", method, path, resp.StatusCode(), resp.Body())
		}

		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, fmt.Errorf("1C %s %s: bad envelope: %w", method, path, err)
		}
		if !env.Success {
			if env.Error != "" {
				return nil, fmt.Errorf("1C %s %s: %s", method, path, env.Error)
			}
			return nil, fmt.Errorf("1C %s %s: success=false", method, path)
		}
		return &env, nil
	}

	return nil, lastErr
}

/* ==========================
   Reads
========================== */

func (c *Client) getRefs(ctx context.Context, path string) ([]dto.Ref, error) {
	env, err := c.do(ctx, resty.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var refs []dto.Ref
	if err := json.Unmarshal(env.Data, &refs); err != nil {
		return nil, fmt.Errorf("1C GET %s: bad data: %w", path, err)
	}
	return refs, nil
}

func (c *Client) GetDepartments(ctx context.Context) ([]dto.Ref, error) {
	return c.getRefs(ctx, "/Departments")
}

func (c *Client) GetGroups(ctx context.Context) ([]dto.Ref, error) {
	return c.getRefs(ctx, "/Groups")
}

func (c *Client) GetDisciplines(ctx context.Context) ([]dto.Ref, error) {
	return c.getRefs(ctx, "/Disciplines")
}

func (c *Client) GetTeachers(ctx context.Context) ([]dto.TeacherRef, error) {
	env, err := c.do(ctx, resty.MethodGet, "/Teachers", nil)
	if err != nil {
		return nil, err
	}
	var teachers []dto.TeacherRef
	if err := json.Unmarshal(env.Data, &teachers); err != nil {
		return nil, fmt.Errorf("1C GET /Teachers: bad data: %w", err)
	}
	return teachers, nil
}

func (c *Client) GetStudents(ctx context.Context) ([]dto.TeacherRef, error) {
	env, err := c.do(ctx, resty.MethodGet, "/Students", nil)
	if err != nil {
		return nil, err
	}
	var students []dto.TeacherRef
	if err := json.Unmarshal(env.Data, &students); err != nil {
		return nil, fmt.Errorf("1C GET /Students: bad data: %w", err)
	}
	return students, nil
}

// GetStudentByCode mengambil potret penuh студент (grup, kafedra, дисциплины).
func (c *Client) GetStudentByCode(ctx context.Context, code string) (*dto.StudentRecord, error) {
	env, err := c.do(ctx, resty.MethodGet, "/StudentsFull/"+code, nil)
	if err != nil {
		return nil, err
	}
	var rec dto.StudentRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return nil, fmt.Errorf("1C GET /StudentsFull/%s: bad data: %w", code, err)
	}
	return &rec, nil
}

// GetTeacherByCode mengambil potret penuh преподаватель.
func (c *Client) GetTeacherByCode(ctx context.Context, code string) (*dto.TeacherRecord, error) {
	env, err := c.do(ctx, resty.MethodGet, "/TeachersFull/"+code, nil)
	if err != nil {
		return nil, err
	}
	var rec dto.TeacherRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return nil, fmt.Errorf("1C GET /TeachersFull/%s: bad data: %w", code, err)
	}
	return &rec, nil
}

/* ==========================
   Writes (admin proxy) — balikannya Код entitas baru.
========================== */

func (c *Client) createNamed(ctx context.Context, path, name string) (string, error) {
	env, err := c.do(ctx, resty.MethodPost, path, map[string]string{"Наименование": name})
	if err != nil {
		return "", err
	}
	return string(env.Code), nil
}

func (c *Client) CreateDepartment(ctx context.Context, name string) (string, error) {
	return c.createNamed(ctx, "/Departments", name)
}

func (c *Client) CreateGroup(ctx context.Context, name string) (string, error) {
	return c.createNamed(ctx, "/Groups", name)
}

func (c *Client) CreateDiscipline(ctx context.Context, name string) (string, error) {
	return c.createNamed(ctx, "/Disciplines", name)
}

func (c *Client) CreateTeacher(ctx context.Context, in dto.CreateTeacherInput) (string, error) {
	payload := map[string]string{
		"Фамилия":  in.LastName,
		"Имя":      in.FirstName,
		"Отчество": in.MiddleName,
		"Кафедра":  in.Department,
	}
	if in.Discipline != "" {
		payload["Дисциплина"] = in.Discipline
	}
	env, err := c.do(ctx, resty.MethodPost, "/Teachers", payload)
	if err != nil {
		return "", err
	}
	return string(env.Code), nil
}

func (c *Client) CreateStudent(ctx context.Context, in dto.CreateStudentInput) (string, error) {
	payload := map[string]string{
		"Фамилия":  in.LastName,
		"Имя":      in.FirstName,
		"Отчество": in.MiddleName,
		"Кафедра":  in.Department,
		"Группа":   in.Group,
	}
	env, err := c.do(ctx, resty.MethodPost, "/Students", payload)
	if err != nil {
		return "", err
	}
	return string(env.Code), nil
}
