package student_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/student"
	inmemdb "github.com/trezcool/karo/storage/database/inmem"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
}

func newTestService(t *testing.T) *student.Service {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return student.NewService(inmemdb.NewStudentRepository(db))
}

func TestNewStudent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		data    student.NewStudent
		wantErr bool
	}{
		{
			name: "ok",
			data: student.NewStudent{Name: " Ada Obi ", RegNumber: "REG-001", Class: "JSS1"},
		},
		{
			name:    "missing name",
			data:    student.NewStudent{RegNumber: "REG-001", Class: "JSS1"},
			wantErr: true,
		},
		{
			name:    "missing reg number",
			data:    student.NewStudent{Name: "Ada Obi", Class: "JSS1"},
			wantErr: true,
		},
		{
			name:    "missing class",
			data:    student.NewStudent{Name: "Ada Obi", RegNumber: "REG-001"},
			wantErr: true,
		},
		{
			name:    "whitespace only name",
			data:    student.NewStudent{Name: "   ", RegNumber: "REG-001", Class: "JSS1"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Ada Obi", tt.data.Name) // cleaned
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	st, err := svc.Create(ctx, "school-1", student.NewStudent{Name: "Ada Obi", RegNumber: "REG-001", Class: "JSS1"})
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, "school-1", st.SchoolID)

	// duplicate reg number within the same school is rejected
	_, err = svc.Create(ctx, "school-1", student.NewStudent{Name: "Bola Eze", RegNumber: "REG-001", Class: "JSS2"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "reg_number", vErr.Fields[0].Field)

	// the same reg number in another school is fine
	_, err = svc.Create(ctx, "school-2", student.NewStudent{Name: "Bola Eze", RegNumber: "REG-001", Class: "JSS2"})
	assert.NoError(t, err)
}

func TestService_Get_scopedBySchool(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	st, err := svc.Create(ctx, "school-1", student.NewStudent{Name: "Ada Obi", RegNumber: "REG-001", Class: "JSS1"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "school-1", st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)

	// another school's ID resolves to not-found, same as a missing row
	_, err = svc.Get(ctx, "school-2", st.ID)
	assert.Equal(t, student.ErrNotFound, err)
	_, err = svc.Get(ctx, "school-1", "missing")
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_Query(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed := []student.NewStudent{
		{Name: "Ada Obi", RegNumber: "REG-001", Class: "JSS1"},
		{Name: "Bola Eze", RegNumber: "REG-002", Class: "JSS1"},
		{Name: "Chika Udo", RegNumber: "REG-003", Class: "JSS2"},
	}
	for _, ns := range seed {
		_, err := svc.Create(ctx, "school-1", ns)
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "school-2", student.NewStudent{Name: "Dayo Ife", RegNumber: "REG-001", Class: "JSS1"})
	require.NoError(t, err)

	names := func(students []student.Student) []string {
		out := make([]string, 0, len(students))
		for _, st := range students {
			out = append(out, st.Name)
		}
		return out
	}

	// no filter: whole roster, never another school's students
	all, err := svc.Query(ctx, "school-1", nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ada Obi", "Bola Eze", "Chika Udo"}, names(all))

	// class filter
	jss1, err := svc.Query(ctx, "school-1", &student.QueryFilter{Class: "JSS1"}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Ada Obi", "Bola Eze"}, names(jss1))

	// case-insensitive search on name or reg number
	byName, err := svc.Query(ctx, "school-1", &student.QueryFilter{Search: "chika"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chika Udo"}, names(byName))

	byReg, err := svc.Query(ctx, "school-1", &student.QueryFilter{Search: "REG-002"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bola Eze"}, names(byReg))

	count, err := svc.Count(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
