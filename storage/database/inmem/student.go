package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query(schoolID string) []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, st := range repo.db.table {
		if st.SchoolID == schoolID {
			students = append(students, *st)
		}
	}
	return students
}

func (repo *studentRepository) CheckRegNumberUniqueness(_ context.Context, schoolID, regNumber string, excludedStudents ...student.Student) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedStudents))
	for _, st := range excludedStudents {
		excluded[st.ID] = true
	}

	for _, st := range repo.query(schoolID) {
		if st.RegNumber == regNumber && !excluded[st.ID] {
			return student.ErrRegNumberExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	st.ID = uuid.New().String()
	repo.db.table[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.table[id]; ok && st.SchoolID == schoolID {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, schoolID string, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query(schoolID)
	if filter != nil && !filter.IsEmpty() {
		matched := students[:0]
		for _, st := range students {
			if filter.Search != "" && !containsFold(st.Name, filter.Search) && !containsFold(st.RegNumber, filter.Search) {
				continue
			}
			if filter.Class != "" && st.Class != filter.Class {
				continue
			}
			matched = append(matched, st)
		}
		students = matched
	}

	sort.Slice(students, func(i, j int) bool { return studentLess(students[i], students[j], ordering) })
	return students, nil
}

func (repo *studentRepository) CountStudents(_ context.Context, schoolID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.query(schoolID)), nil
}

func studentLess(a, b student.Student, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "reg_number":
			cmp = strings.Compare(a.RegNumber, b.RegNumber)
		case "class_name":
			cmp = strings.Compare(a.Class, b.Class)
		case "created_at":
			switch {
			case a.CreatedAt.Before(b.CreatedAt):
				cmp = -1
			case a.CreatedAt.After(b.CreatedAt):
				cmp = 1
			}
		default:
			continue
		}
		if cmp != 0 {
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
	}
	return a.Name < b.Name
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
