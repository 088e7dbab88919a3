package student

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/karo/core"
)

var (
	// errors
	ErrNotFound        = errors.New("student not found")
	ErrRegNumberExists = errors.New("a student with this registration number already exists")
)

type (
	Repository interface {
		// CheckRegNumberUniqueness checks (schoolID, regNumber) uniqueness;
		// registration numbers may repeat across schools.
		CheckRegNumberUniqueness(ctx context.Context, schoolID, regNumber string, excludedStudents ...Student) error
		CreateStudent(ctx context.Context, st Student) (Student, error)
		// GetStudent is scoped by schoolID: a student belonging to another
		// school resolves to ErrNotFound, same as a missing row.
		GetStudent(ctx context.Context, schoolID, id string) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Student.Name or Student.RegNumber.
		QueryStudents(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		CountStudents(ctx context.Context, schoolID string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, schoolID, regNumber string, exclStudents ...Student) error {
	if err := svc.repo.CheckRegNumberUniqueness(ctx, schoolID, regNumber, exclStudents...); err != nil {
		if err == ErrRegNumberExists {
			return core.NewValidationError(err, core.FieldError{Field: "reg_number", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, schoolID string, ns NewStudent) (Student, error) {
	if err := svc.checkUniqueness(ctx, schoolID, ns.RegNumber); err != nil {
		return Student{}, err
	}
	now := time.Now().UTC()
	st := Student{
		SchoolID:  schoolID,
		Name:      ns.Name,
		RegNumber: ns.RegNumber,
		Class:     ns.Class,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *Service) Get(ctx context.Context, schoolID, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, schoolID, id)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, schoolID, filter, ordering)
}

func (svc *Service) Count(ctx context.Context, schoolID string) (int, error) {
	return svc.repo.CountStudents(ctx, schoolID)
}
