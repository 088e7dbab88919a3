package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/money"
)

type feeStructureRow struct {
	ID             string    `db:"id"`
	SchoolID       string    `db:"school_id"`
	Class          string    `db:"class_name"`
	Term           string    `db:"term"`
	Session        string    `db:"session"`
	ExpectedAmount int64     `db:"expected_amount"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r feeStructureRow) unmarshal() billing.FeeStructure {
	return billing.FeeStructure{
		ID:             r.ID,
		SchoolID:       r.SchoolID,
		Class:          r.Class,
		Term:           r.Term,
		Session:        r.Session,
		ExpectedAmount: money.Amount(r.ExpectedAmount),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type paymentRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	Amount      int64     `db:"amount"`
	PaymentType string    `db:"payment_type"`
	Term        string    `db:"term"`
	Session     string    `db:"session"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r paymentRow) unmarshal() billing.Payment {
	return billing.Payment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		Amount:      money.Amount(r.Amount),
		PaymentType: r.PaymentType,
		Term:        r.Term,
		Session:     r.Session,
		CreatedAt:   r.CreatedAt,
	}
}

var (
	feeOrderFields = map[string]bool{
		"class_name": true,
		"term":       true,
		"session":    true,
		"created_at": true,
	}
	paymentOrderFields = map[string]bool{
		"created_at": true,
		"amount":     true,
	}
)

type billingRepository struct {
	db *sqlx.DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *sql.DB) *billingRepository {
	return &billingRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo billingRepository) UpsertFeeStructure(ctx context.Context, fs billing.FeeStructure) (billing.FeeStructure, error) {
	fs.ID = uuid.New().String()
	var r feeStructureRow
	err := repo.db.GetContext(ctx, &r, `
		INSERT INTO fee_structure (id, school_id, class_name, term, session, expected_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (school_id, class_name, term, session)
			DO UPDATE SET expected_amount = EXCLUDED.expected_amount, updated_at = EXCLUDED.updated_at
		RETURNING id, school_id, class_name, term, session, expected_amount, created_at, updated_at`,
		fs.ID, fs.SchoolID, fs.Class, fs.Term, fs.Session, int64(fs.ExpectedAmount), fs.CreatedAt, fs.UpdatedAt,
	)
	if err != nil {
		return billing.FeeStructure{}, errors.Wrap(err, "upserting fee structure")
	}
	return r.unmarshal(), nil
}

func (repo billingRepository) GetFeeStructure(ctx context.Context, schoolID, class, term, session string) (billing.FeeStructure, error) {
	var r feeStructureRow
	err := repo.db.GetContext(ctx, &r, `
		SELECT id, school_id, class_name, term, session, expected_amount, created_at, updated_at
		FROM fee_structure
		WHERE school_id = $1 AND class_name = $2 AND term = $3 AND session = $4`,
		schoolID, class, term, session)
	if err != nil {
		if err == sql.ErrNoRows {
			return billing.FeeStructure{}, billing.ErrFeeNotFound
		}
		return billing.FeeStructure{}, errors.Wrap(err, "getting fee structure")
	}
	return r.unmarshal(), nil
}

func (repo billingRepository) QueryFeeStructures(ctx context.Context, schoolID string, ordering []core.DBOrdering) ([]billing.FeeStructure, error) {
	query := `
		SELECT id, school_id, class_name, term, session, expected_amount, created_at, updated_at
		FROM fee_structure WHERE school_id = $1` + orderBy(ordering, feeOrderFields, "class_name ASC, term ASC")

	var rows []feeStructureRow
	if err := repo.db.SelectContext(ctx, &rows, query, schoolID); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	fees := make([]billing.FeeStructure, 0, len(rows))
	for _, r := range rows {
		fees = append(fees, r.unmarshal())
	}
	return fees, nil
}

func (repo billingRepository) DeleteFeeStructure(ctx context.Context, schoolID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM fee_structure WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.ErrFeeNotFound
	}
	return nil
}

func (repo billingRepository) CreatePayment(ctx context.Context, p billing.Payment) (billing.Payment, error) {
	p.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO payment (id, student_id, amount, payment_type, term, session, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.StudentID, int64(p.Amount), p.PaymentType, p.Term, p.Session, p.CreatedAt,
	)
	if err != nil {
		return billing.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo billingRepository) GetPayment(ctx context.Context, schoolID, id string) (billing.Payment, error) {
	var r paymentRow
	err := repo.db.GetContext(ctx, &r, `
		SELECT p.id, p.student_id, p.amount, p.payment_type, p.term, p.session, p.created_at
		FROM payment p
			JOIN student s ON s.id = p.student_id
		WHERE s.school_id = $1 AND p.id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return billing.Payment{}, billing.ErrPaymentNotFound
		}
		return billing.Payment{}, errors.Wrap(err, "getting payment")
	}
	return r.unmarshal(), nil
}

func (repo billingRepository) QueryPayments(ctx context.Context, schoolID string, filter *billing.PaymentFilter, ordering []core.DBOrdering) ([]billing.Payment, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT p.id, p.student_id, p.amount, p.payment_type, p.term, p.session, p.created_at
		FROM payment p
			JOIN student s ON s.id = p.student_id
		WHERE s.school_id = $1`)
	args := []interface{}{schoolID}

	var limit int
	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			query.WriteString(fmt.Sprintf(` AND (s.name ILIKE $%d OR s.reg_number ILIKE $%d)`, len(args), len(args)))
		}
		if filter.Term != "" {
			args = append(args, filter.Term)
			query.WriteString(fmt.Sprintf(` AND p.term = $%d`, len(args)))
		}
		if filter.Session != "" {
			args = append(args, filter.Session)
			query.WriteString(fmt.Sprintf(` AND p.session = $%d`, len(args)))
		}
		limit = filter.Limit
	}
	query.WriteString(strings.ReplaceAll(orderBy(ordering, paymentOrderFields, "created_at DESC"), "created_at", "p.created_at"))
	if limit > 0 {
		args = append(args, limit)
		query.WriteString(fmt.Sprintf(` LIMIT $%d`, len(args)))
	}

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, query.String(), args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]billing.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.unmarshal())
	}
	return payments, nil
}

func (repo billingRepository) SumPayments(ctx context.Context, schoolID, studentID, term, session string) (money.Amount, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payment p
			JOIN student s ON s.id = p.student_id
		WHERE s.school_id = $1 AND p.student_id = $2`)
	args := []interface{}{schoolID, studentID}
	if term != "" {
		args = append(args, term)
		query.WriteString(fmt.Sprintf(` AND p.term = $%d`, len(args)))
	}
	if session != "" {
		args = append(args, session)
		query.WriteString(fmt.Sprintf(` AND p.session = $%d`, len(args)))
	}

	var total int64
	if err := repo.db.GetContext(ctx, &total, query.String(), args...); err != nil {
		return 0, errors.Wrap(err, "summing payments")
	}
	return money.Amount(total), nil
}

func (repo billingRepository) SumSchoolPayments(ctx context.Context, schoolID string) (money.Amount, error) {
	var total int64
	err := repo.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payment p
			JOIN student s ON s.id = p.student_id
		WHERE s.school_id = $1`, schoolID)
	if err != nil {
		return 0, errors.Wrap(err, "summing school payments")
	}
	return money.Amount(total), nil
}
