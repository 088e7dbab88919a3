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
	"github.com/trezcool/karo/core/student"
)

type studentRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Name      string    `db:"name"`
	RegNumber string    `db:"reg_number"`
	Class     string    `db:"class_name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r studentRow) unmarshal() student.Student {
	return student.Student{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Name:      r.Name,
		RegNumber: r.RegNumber,
		Class:     r.Class,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// studentOrderFields whitelists orderable columns.
var studentOrderFields = map[string]bool{
	"name":       true,
	"reg_number": true,
	"class_name": true,
	"created_at": true,
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sql.DB) *studentRepository {
	return &studentRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo studentRepository) CheckRegNumberUniqueness(ctx context.Context, schoolID, regNumber string, excludedStudents ...student.Student) error {
	query := `SELECT EXISTS (SELECT 1 FROM student WHERE school_id = $1 AND reg_number = $2)`
	args := []interface{}{schoolID, regNumber}
	if len(excludedStudents) > 0 {
		ids := make([]string, 0, len(excludedStudents))
		for _, st := range excludedStudents {
			ids = append(ids, st.ID)
		}
		inQuery, inArgs, err := sqlx.In(
			`SELECT EXISTS (SELECT 1 FROM student WHERE school_id = ? AND reg_number = ? AND id NOT IN (?))`,
			schoolID, regNumber, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query, args = repo.db.Rebind(inQuery), inArgs
	}

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, args...); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	if exists {
		return student.ErrRegNumberExists
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	st.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO student (id, school_id, name, reg_number, class_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.SchoolID, st.Name, st.RegNumber, st.Class, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, schoolID, id string) (student.Student, error) {
	var r studentRow
	err := repo.db.GetContext(ctx, &r, `
		SELECT id, school_id, name, reg_number, class_name, created_at, updated_at
		FROM student WHERE school_id = $1 AND id = $2`, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	return r.unmarshal(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, schoolID string, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, school_id, name, reg_number, class_name, created_at, updated_at
		FROM student WHERE school_id = $1`)
	args := []interface{}{schoolID}

	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			query.WriteString(fmt.Sprintf(` AND (name ILIKE $%d OR reg_number ILIKE $%d)`, len(args), len(args)))
		}
		if filter.Class != "" {
			args = append(args, filter.Class)
			query.WriteString(fmt.Sprintf(` AND class_name = $%d`, len(args)))
		}
	}
	query.WriteString(orderBy(ordering, studentOrderFields, "name ASC"))

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, query.String(), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unmarshal())
	}
	return students, nil
}

func (repo studentRepository) CountStudents(ctx context.Context, schoolID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM student WHERE school_id = $1`, schoolID)
	if err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}

// orderBy renders an ORDER BY clause from whitelisted orderings.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
