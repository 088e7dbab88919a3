package school

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/student"
)

var (
	// NowFunc returns the current time; swap it out in tests.
	NowFunc = time.Now

	// errors
	ErrNotFound           = errors.New("school not found")
	ErrNameExists         = errors.New("a school with this name already exists")
	ErrEmailExists        = errors.New("a school with this email already exists")
	ErrTrialNotConfigured = errors.New("trial period is not configured")
)

type (
	Repository interface {
		CheckSchoolUniqueness(ctx context.Context, name, email string, excludedSchools ...School) error
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		GetSchoolByEmail(ctx context.Context, email string) (School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
	}

	Service struct {
		repo        Repository
		studentRepo student.Repository
		mailSvc     core.EmailService
		gateway     Gateway
		conf        *core.Config
	}
)

func NewService(repo Repository, studentRepo student.Repository, mailSvc core.EmailService, gateway Gateway, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		studentRepo: studentRepo,
		mailSvc:     mailSvc,
		gateway:     gateway,
		conf:        conf,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, name, email string, exclSchools ...School) error {
	if err := svc.repo.CheckSchoolUniqueness(ctx, name, email, exclSchools...); err != nil {
		var field string
		switch err {
		case ErrNameExists:
			field = "name"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a new School with a trial subscription expiry of
// Config.TrialDays from today. The trial length has no baked-in default and
// must be configured.
func (svc *Service) Register(ctx context.Context, ns NewSchool) (School, error) {
	if svc.conf.TrialDays <= 0 {
		return School{}, ErrTrialNotConfigured
	}

	now := NowFunc().UTC()
	sch := School{
		Name:               ns.Name,
		Email:              ns.Email,
		SubscriptionExpiry: Today().AddDate(0, 0, svc.conf.TrialDays),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := sch.SetPassword(ns.Password); err != nil {
		return School{}, err
	}
	sch, err := svc.repo.CreateSchool(ctx, sch)
	if err != nil {
		return School{}, err
	}
	svc.sendWelcomeMail(sch)
	return sch, nil
}

func (svc *Service) Get(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (School, error) {
	return svc.repo.GetSchoolByEmail(ctx, core.CleanString(email, true /* lower */))
}

// UpdateSettings applies the mutable settings to an existing School.
func (svc *Service) UpdateSettings(ctx context.Context, id string, us UpdateSchool) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, err
	}
	sch.Name = us.Name
	sch.Address = us.Address
	sch.Phone = us.Phone
	if us.expectedFees != nil {
		sch.ExpectedFeesThisTerm = *us.expectedFees
	}
	sch.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *Service) sendWelcomeMail(sch School) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: sch.Name, Address: sch.Email}},
		Subject: "Welcome to " + svc.conf.AppName,
		TextContent: fmt.Sprintf(
			"Hello %s,\n\nYour school is registered. Your trial runs through %s.\n",
			sch.Name, sch.SubscriptionExpiry.Format("02 Jan 2006"),
		),
	})
}
