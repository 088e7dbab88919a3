package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/school"
)

type schoolRow struct {
	ID                   string    `db:"id"`
	Name                 string    `db:"name"`
	Email                string    `db:"email"`
	PasswordHash         []byte    `db:"password_hash"`
	Address              string    `db:"address"`
	Phone                string    `db:"phone"`
	ExpectedFeesThisTerm int64     `db:"expected_fees_this_term"`
	SubscriptionExpiry   time.Time `db:"subscription_expiry"`
	PendingRenewalRef    string    `db:"pending_renewal_ref"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (r schoolRow) unmarshal() school.School {
	return school.School{
		ID:                   r.ID,
		Name:                 r.Name,
		Email:                r.Email,
		PasswordHash:         r.PasswordHash,
		Address:              r.Address,
		Phone:                r.Phone,
		ExpectedFeesThisTerm: money.Amount(r.ExpectedFeesThisTerm),
		SubscriptionExpiry:   r.SubscriptionExpiry,
		PendingRenewalRef:    r.PendingRenewalRef,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sql.DB) *schoolRepository {
	return &schoolRepository{db: sqlx.NewDb(db, "postgres")}
}

const schoolColumns = `id, name, email, password_hash, address, phone, expected_fees_this_term,
	subscription_expiry, pending_renewal_ref, created_at, updated_at`

func (repo schoolRepository) CheckSchoolUniqueness(ctx context.Context, name, email string, excludedSchools ...school.School) error {
	query := `SELECT name, email FROM school WHERE (name = $1 OR email = $2)`
	args := []interface{}{name, email}
	if len(excludedSchools) > 0 {
		ids := make([]string, 0, len(excludedSchools))
		for _, sch := range excludedSchools {
			ids = append(ids, sch.ID)
		}
		inQuery, inArgs, err := sqlx.In(`SELECT name, email FROM school WHERE (name = ? OR email = ?) AND id NOT IN (?)`, name, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query, args = repo.db.Rebind(inQuery), inArgs
	}

	var rows []schoolRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return errors.Wrap(err, "checking school uniqueness")
	}
	for _, r := range rows {
		if r.Name == name {
			return school.ErrNameExists
		}
		if email != "" && r.Email == email {
			return school.ErrEmailExists
		}
	}
	return nil
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO school (id, name, email, password_hash, address, phone, expected_fees_this_term,
			subscription_expiry, pending_renewal_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sch.ID, sch.Name, sch.Email, sch.PasswordHash, sch.Address, sch.Phone,
		int64(sch.ExpectedFeesThisTerm), sch.SubscriptionExpiry, sch.PendingRenewalRef,
		sch.CreatedAt, sch.UpdatedAt,
	)
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	var r schoolRow
	err := repo.db.GetContext(ctx, &r, `SELECT `+schoolColumns+` FROM school WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "getting school")
	}
	return r.unmarshal(), nil
}

func (repo schoolRepository) GetSchoolByEmail(ctx context.Context, email string) (school.School, error) {
	var r schoolRow
	err := repo.db.GetContext(ctx, &r, `SELECT `+schoolColumns+` FROM school WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "getting school by email")
	}
	return r.unmarshal(), nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE school
		SET name = $2, email = $3, password_hash = $4, address = $5, phone = $6,
			expected_fees_this_term = $7, subscription_expiry = $8, pending_renewal_ref = $9, updated_at = $10
		WHERE id = $1`,
		sch.ID, sch.Name, sch.Email, sch.PasswordHash, sch.Address, sch.Phone,
		int64(sch.ExpectedFeesThisTerm), sch.SubscriptionExpiry, sch.PendingRenewalRef, sch.UpdatedAt,
	)
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}
