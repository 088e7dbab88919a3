package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/karo/core"
)

type Student struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"-"`
	Name      string    `json:"name"`
	RegNumber string    `json:"reg_number"`
	Class     string    `json:"class_name"` // free-text label, not a class entity
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name      string `json:"name" validate:"required"`
	RegNumber string `json:"reg_number" validate:"required"`
	Class     string `json:"class_name" validate:"required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.RegNumber = core.CleanString(ns.RegNumber)
	ns.Class = core.CleanString(ns.Class)
	return validate.Struct(ns)
}

type QueryFilter struct {
	Search string `query:"search"`
	Class  string `query:"class_name"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Class == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Class = core.CleanString(qf.Class)
}
