package dto

import "github.com/go-playground/validator/v10"

/* ==========================
   Auth request payloads
========================== */

type CheckStudentCodeRequest struct {
	Code  string `json:"code" validate:"required,max=64"`
	Group string `json:"group" validate:"omitempty,max=255"`
}

type CheckTeacherCodeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type RegisterStudentRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	Group    string `json:"group" validate:"required,max=255"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type RegisterTeacherRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var validate = validator.New()

func (r *CheckStudentCodeRequest) Validate() error { return validate.Struct(r) }
func (r *CheckTeacherCodeRequest) Validate() error { return validate.Struct(r) }
func (r *RegisterStudentRequest) Validate() error  { return validate.Struct(r) }
func (r *RegisterTeacherRequest) Validate() error  { return validate.Struct(r) }
func (r *LoginRequest) Validate() error            { return validate.Struct(r) }
