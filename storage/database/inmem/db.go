package inmemdb

import (
	"sync"

	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/school"
	"github.com/trezcool/karo/core/student"
)

type (
	DB struct {
		school  *schoolTable
		student *studentTable
		fee     *feeTable
		payment *paymentTable
	}

	schoolTable struct {
		sync.RWMutex
		table map[string]*school.School
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	feeTable struct {
		sync.RWMutex
		table map[string]*billing.FeeStructure
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*billing.Payment
	}
)

func Open() (*DB, error) {
	db := &DB{
		school:  &schoolTable{table: make(map[string]*school.School)},
		student: &studentTable{table: make(map[string]*student.Student)},
		fee:     &feeTable{table: make(map[string]*billing.FeeStructure)},
		payment: &paymentTable{table: make(map[string]*billing.Payment)},
	}
	return db, nil
}

// Reset empties all tables; meant for test setups.
func (db *DB) Reset() {
	db.school.Lock()
	db.school.table = make(map[string]*school.School)
	db.school.Unlock()

	db.student.Lock()
	db.student.table = make(map[string]*student.Student)
	db.student.Unlock()

	db.fee.Lock()
	db.fee.table = make(map[string]*billing.FeeStructure)
	db.fee.Unlock()

	db.payment.Lock()
	db.payment.table = make(map[string]*billing.Payment)
	db.payment.Unlock()
}
