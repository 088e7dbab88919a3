package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/money"
	"github.com/trezcool/karo/core/student"
)

type billingRepository struct {
	fees     *feeTable
	payments *paymentTable
	students *studentTable
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) *billingRepository {
	return &billingRepository{fees: db.fee, payments: db.payment, students: db.student}
}

func (repo *billingRepository) queryFees(schoolID string) []billing.FeeStructure {
	fees := make([]billing.FeeStructure, 0, len(repo.fees.table))
	for _, fs := range repo.fees.table {
		if fs.SchoolID == schoolID {
			fees = append(fees, *fs)
		}
	}
	return fees
}

// studentsByID snapshots a school's students keyed by ID. Callers must hold
// the student table lock.
func (repo *billingRepository) studentsByID(schoolID string) map[string]student.Student {
	students := make(map[string]student.Student)
	for _, st := range repo.students.table {
		if st.SchoolID == schoolID {
			students[st.ID] = *st
		}
	}
	return students
}

func (repo *billingRepository) UpsertFeeStructure(_ context.Context, fs billing.FeeStructure) (billing.FeeStructure, error) {
	repo.fees.Lock()
	defer repo.fees.Unlock()

	for _, existing := range repo.fees.table {
		if existing.SchoolID == fs.SchoolID && existing.Class == fs.Class &&
			existing.Term == fs.Term && existing.Session == fs.Session {
			existing.ExpectedAmount = fs.ExpectedAmount
			existing.UpdatedAt = fs.UpdatedAt
			return *existing, nil
		}
	}

	fs.ID = uuid.New().String()
	repo.fees.table[fs.ID] = &fs
	return fs, nil
}

func (repo *billingRepository) GetFeeStructure(_ context.Context, schoolID, class, term, session string) (billing.FeeStructure, error) {
	repo.fees.RLock()
	defer repo.fees.RUnlock()

	for _, fs := range repo.fees.table {
		if fs.SchoolID == schoolID && fs.Class == class && fs.Term == term && fs.Session == session {
			return *fs, nil
		}
	}
	return billing.FeeStructure{}, billing.ErrFeeNotFound
}

func (repo *billingRepository) QueryFeeStructures(_ context.Context, schoolID string, ordering []core.DBOrdering) ([]billing.FeeStructure, error) {
	repo.fees.RLock()
	defer repo.fees.RUnlock()

	fees := repo.queryFees(schoolID)
	sort.Slice(fees, func(i, j int) bool {
		if fees[i].Class != fees[j].Class {
			return fees[i].Class < fees[j].Class
		}
		return fees[i].Term < fees[j].Term
	})
	return fees, nil
}

func (repo *billingRepository) DeleteFeeStructure(_ context.Context, schoolID, id string) error {
	repo.fees.Lock()
	defer repo.fees.Unlock()

	if fs, ok := repo.fees.table[id]; ok && fs.SchoolID == schoolID {
		delete(repo.fees.table, id)
		return nil
	}
	return billing.ErrFeeNotFound
}

func (repo *billingRepository) CreatePayment(_ context.Context, p billing.Payment) (billing.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()

	p.ID = uuid.New().String()
	repo.payments.table[p.ID] = &p
	return p, nil
}

func (repo *billingRepository) GetPayment(_ context.Context, schoolID, id string) (billing.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()

	students := repo.studentsByID(schoolID)
	if p, ok := repo.payments.table[id]; ok {
		if _, owned := students[p.StudentID]; owned {
			return *p, nil
		}
	}
	return billing.Payment{}, billing.ErrPaymentNotFound
}

func (repo *billingRepository) QueryPayments(_ context.Context, schoolID string, filter *billing.PaymentFilter, ordering []core.DBOrdering) ([]billing.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()

	students := repo.studentsByID(schoolID)
	payments := make([]billing.Payment, 0, len(repo.payments.table))
	for _, p := range repo.payments.table {
		st, owned := students[p.StudentID]
		if !owned {
			continue
		}
		if filter != nil {
			if filter.Search != "" && !containsFold(st.Name, filter.Search) && !containsFold(st.RegNumber, filter.Search) {
				continue
			}
			if filter.Term != "" && p.Term != filter.Term {
				continue
			}
			if filter.Session != "" && p.Session != filter.Session {
				continue
			}
		}
		payments = append(payments, *p)
	}

	sort.Slice(payments, func(i, j int) bool { return paymentLess(payments[i], payments[j], ordering) })
	if filter != nil && filter.Limit > 0 && len(payments) > filter.Limit {
		payments = payments[:filter.Limit]
	}
	return payments, nil
}

func (repo *billingRepository) SumPayments(_ context.Context, schoolID, studentID, term, session string) (money.Amount, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()

	if st, ok := repo.students.table[studentID]; !ok || st.SchoolID != schoolID {
		return 0, nil
	}

	var total money.Amount
	for _, p := range repo.payments.table {
		if p.StudentID != studentID {
			continue
		}
		if term != "" && p.Term != term {
			continue
		}
		if session != "" && p.Session != session {
			continue
		}
		total += p.Amount
	}
	return total, nil
}

func (repo *billingRepository) SumSchoolPayments(_ context.Context, schoolID string) (money.Amount, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()

	students := repo.studentsByID(schoolID)
	var total money.Amount
	for _, p := range repo.payments.table {
		if _, owned := students[p.StudentID]; owned {
			total += p.Amount
		}
	}
	return total, nil
}

func paymentLess(a, b billing.Payment, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "created_at":
			switch {
			case a.CreatedAt.Before(b.CreatedAt):
				cmp = -1
			case a.CreatedAt.After(b.CreatedAt):
				cmp = 1
			}
		case "amount":
			switch {
			case a.Amount < b.Amount:
				cmp = -1
			case a.Amount > b.Amount:
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
	return a.CreatedAt.After(b.CreatedAt)
}
