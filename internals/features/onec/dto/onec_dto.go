package dto

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

/* ==========================
   Directory 1C wire shapes

   Directory mengirim field berkirilik (Код, Фамилия, Имя, ...) dan
   tidak konsisten soal referensi: kadang objek {Код, Наименование},
   kadang cuma string nama. Semua normalisasi bentuk dikunci di sini —
   layer di atas client tidak pernah lihat JSON mentah 1C.
========================== */

// flexCode menerima Код sebagai angka JSON maupun string ("000000296")
// dan menyimpannya apa adanya sebagai string.
type flexCode string

func (c *flexCode) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*c = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*c = flexCode(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*c = flexCode(num.String())
	return nil
}

func (c flexCode) ptr() *string {
	if c == "" {
		return nil
	}
	s := string(c)
	return &s
}

// Ref adalah referensi entitas Directory (kafedra / grup / дисциплина).
// Код bisa angka atau string di wire; dinormalkan jadi *string.
type Ref struct {
	Code *string
	Name string
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	// Bentuk pendek: cuma nama.
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		r.Code = nil
		return nil
	}

	var obj struct {
		Code flexCode `json:"Код"`
		Name string   `json:"Наименование"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Name = obj.Name
	r.Code = obj.Code.ptr()
	return nil
}

// HasCode true kalau referensi membawa Код yang tidak kosong.
func (r *Ref) HasCode() bool {
	return r.Code != nil && *r.Code != ""
}

// TeacherRef adalah преподаватель sebagaimana muncul di daftar дисциплин
// seorang студент (atau di listing /Teachers).
type TeacherRef struct {
	Code       *string
	LastName   string
	FirstName  string
	MiddleName string
}

func (t *TeacherRef) UnmarshalJSON(data []byte) error {
	var obj struct {
		Code       flexCode `json:"Код"`
		LastName   string   `json:"Фамилия"`
		FirstName  string   `json:"Имя"`
		MiddleName string   `json:"Отчество"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.LastName = obj.LastName
	t.FirstName = obj.FirstName
	t.MiddleName = obj.MiddleName
	t.Code = obj.Code.ptr()
	return nil
}

// HasCode true kalau преподаватель membawa Код.
func (t *TeacherRef) HasCode() bool {
	return t.Code != nil && *t.Code != ""
}

// DisciplineEntry = дисциплина + para pengajarnya di record студент.
type DisciplineEntry struct {
	Ref      Ref
	Teachers []TeacherRef
}

func (d *DisciplineEntry) UnmarshalJSON(data []byte) error {
	var obj struct {
		Code     flexCode     `json:"Код"`
		Name     string       `json:"Наименование"`
		Teachers []TeacherRef `json:"Преподаватели"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	d.Ref.Name = obj.Name
	d.Ref.Code = obj.Code.ptr()
	d.Teachers = obj.Teachers
	return nil
}

// StudentRecord adalah potret penuh студент dari /StudentsFull/{Код}.
type StudentRecord struct {
	Code        string            `json:"Код"`
	LastName    string            `json:"Фамилия"`
	FirstName   string            `json:"Имя"`
	MiddleName  string            `json:"Отчество"`
	Department  Ref               `json:"Кафедра"`
	Group       Ref               `json:"Группа"`
	Disciplines []DisciplineEntry `json:"Дисциплины"`
}

func (s *StudentRecord) UnmarshalJSON(data []byte) error {
	var obj struct {
		Code        flexCode          `json:"Код"`
		LastName    string            `json:"Фамилия"`
		FirstName   string            `json:"Имя"`
		MiddleName  string            `json:"Отчество"`
		Department  Ref               `json:"Кафедра"`
		Group       Ref               `json:"Группа"`
		Disciplines []DisciplineEntry `json:"Дисциплины"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = StudentRecord{
		Code:        string(obj.Code),
		LastName:    obj.LastName,
		FirstName:   obj.FirstName,
		MiddleName:  obj.MiddleName,
		Department:  obj.Department,
		Group:       obj.Group,
		Disciplines: obj.Disciplines,
	}
	return nil
}

// TeacherRecord adalah potret penuh преподаватель dari /TeachersFull/{Код}.
// Directory cuma menautkan satu дисциплину per преподаватель record.
type TeacherRecord struct {
	Code       string `json:"Код"`
	LastName   string `json:"Фамилия"`
	FirstName  string `json:"Имя"`
	MiddleName string `json:"Отчество"`
	Department Ref    `json:"Кафедра"`
	Discipline *Ref   `json:"Дисциплина"`
}

func (t *TeacherRecord) UnmarshalJSON(data []byte) error {
	var obj struct {
		Code       flexCode `json:"Код"`
		LastName   string   `json:"Фамилия"`
		FirstName  string   `json:"Имя"`
		MiddleName string   `json:"Отчество"`
		Department Ref      `json:"Кафедра"`
		Discipline *Ref     `json:"Дисциплина"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*t = TeacherRecord{
		Code:       string(obj.Code),
		LastName:   obj.LastName,
		FirstName:  obj.FirstName,
		MiddleName: obj.MiddleName,
		Department: obj.Department,
		Discipline: obj.Discipline,
	}
	return nil
}

/* ==========================
   Admin write payloads (proxy ke Directory)
========================== */

type CreateTeacherInput struct {
	LastName   string `json:"last_name" validate:"required,max=100"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	MiddleName string `json:"middle_name" validate:"max=100"`
	Department string `json:"department" validate:"required,max=255"`
	Discipline string `json:"discipline" validate:"max=255"`
}

type CreateStudentInput struct {
	LastName   string `json:"last_name" validate:"required,max=100"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	MiddleName string `json:"middle_name" validate:"max=100"`
	Department string `json:"department" validate:"required,max=255"`
	Group      string `json:"group" validate:"required,max=255"`
}

var validate = validator.New()

func (in *CreateTeacherInput) Validate() error { return validate.Struct(in) }
func (in *CreateStudentInput) Validate() error { return validate.Struct(in) }
