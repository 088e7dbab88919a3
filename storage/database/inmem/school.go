package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) query() []school.School {
	schools := make([]school.School, 0, len(repo.db.table))
	for _, sch := range repo.db.table {
		schools = append(schools, *sch)
	}
	return schools
}

func (repo *schoolRepository) CheckSchoolUniqueness(_ context.Context, name, email string, excludedSchools ...school.School) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedSchools))
	for _, sch := range excludedSchools {
		excluded[sch.ID] = true
	}

	for _, sch := range repo.query() {
		if excluded[sch.ID] {
			continue
		}
		if sch.Name == name {
			return school.ErrNameExists
		}
		if email != "" && sch.Email == email {
			return school.ErrEmailExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sch.ID = uuid.New().String()
	repo.db.table[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.table[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByEmail(_ context.Context, email string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sch := range repo.query() {
		if sch.Email == email {
			return sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[sch.ID]; !ok {
		return school.School{}, school.ErrNotFound
	}
	repo.db.table[sch.ID] = &sch
	return sch, nil
}
