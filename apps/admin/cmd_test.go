package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/school"
	inmemdb "github.com/trezcool/karo/storage/database/inmem"
)

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func newTestCLI(t *testing.T) *commandLine {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return &commandLine{
		conf:       &core.Config{TrialDays: 30},
		schoolRepo: inmemdb.NewSchoolRepository(db),
	}
}

func TestCLI_run_help(t *testing.T) {
	mockPassword(t, "S3cret!pwd")

	tests := []struct {
		name string
		args []string
	}{
		{name: "no subcommand", args: []string{"admin"}},
		{name: "unknown subcommand", args: []string{"admin", "dropdb"}},
		{name: "addschool: missing name", args: []string{"admin", "addschool", "-email", "admin@sunrise.test"}},
		{name: "addschool: missing email", args: []string{"admin", "addschool", "-name", "Sunrise Academy"}},
		{name: "resetpassword: missing email", args: []string{"admin", "resetpassword"}},
		{name: "migrate: missing command", args: []string{"admin", "migrate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := newTestCLI(t)
			assert.Equal(t, errHelp, cli.run(tt.args))
		})
	}
}

func TestCLI_addSchool(t *testing.T) {
	mockPassword(t, "S3cret!pwd")
	cli := newTestCLI(t)
	ctx := context.Background()

	err := cli.run([]string{"admin", "addschool", "-name", " Sunrise Academy ", "-email", "Admin@Sunrise.test"})
	require.NoError(t, err)

	sch, err := cli.schoolRepo.GetSchoolByEmail(ctx, "admin@sunrise.test")
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Academy", sch.Name)
	assert.NoError(t, sch.CheckPassword("S3cret!pwd"))
	assert.Equal(t, school.Today().AddDate(0, 0, 30), sch.SubscriptionExpiry)

	t.Run("duplicate email", func(t *testing.T) {
		err := cli.run([]string{"admin", "addschool", "-name", "Hillcrest College", "-email", "admin@sunrise.test"})
		assert.Equal(t, school.ErrEmailExists, err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := cli.run([]string{"admin", "addschool", "-name", "Sunrise Academy", "-email", "admin@hillcrest.test"})
		assert.Equal(t, school.ErrNameExists, err)
	})

	t.Run("trial not configured", func(t *testing.T) {
		cli := newTestCLI(t)
		cli.conf.TrialDays = 0
		err := cli.run([]string{"admin", "addschool", "-name", "Hillcrest College", "-email", "admin@hillcrest.test"})
		assert.Equal(t, school.ErrTrialNotConfigured, err)
	})

	t.Run("empty password", func(t *testing.T) {
		mockPassword(t, "")
		cli := newTestCLI(t)
		err := cli.run([]string{"admin", "addschool", "-name", "Hillcrest College", "-email", "admin@hillcrest.test"})
		assert.Equal(t, errHelp, err)
	})
}

func TestCLI_resetPassword(t *testing.T) {
	mockPassword(t, "S3cret!pwd")
	cli := newTestCLI(t)
	ctx := context.Background()

	require.NoError(t, cli.run([]string{"admin", "addschool", "-name", "Sunrise Academy", "-email", "admin@sunrise.test"}))

	mockPassword(t, "N3w!password")
	err := cli.run([]string{"admin", "resetpassword", "-email", " Admin@Sunrise.test "})
	require.NoError(t, err)

	sch, err := cli.schoolRepo.GetSchoolByEmail(ctx, "admin@sunrise.test")
	require.NoError(t, err)
	assert.NoError(t, sch.CheckPassword("N3w!password"))
	assert.Error(t, sch.CheckPassword("S3cret!pwd"))

	t.Run("unknown email", func(t *testing.T) {
		err := cli.run([]string{"admin", "resetpassword", "-email", "nobody@sunrise.test"})
		assert.Equal(t, school.ErrNotFound, err)
	})
}

func TestCLI_migrate(t *testing.T) {
	type call struct {
		command string
		dir     string
		args    []string
	}
	var got *call
	orig := gooseRunFunc
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		got = &call{command: command, dir: dir, args: args}
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	tests := []struct {
		name string
		args []string
		want call
	}{
		{
			name: "up",
			args: []string{"admin", "migrate", "up"},
			want: call{command: "up", dir: "migrations", args: []string{}},
		},
		{
			name: "status",
			args: []string{"admin", "migrate", "status"},
			want: call{command: "status", dir: "migrations", args: []string{}},
		},
		{
			name: "down-to with version",
			args: []string{"admin", "migrate", "down-to", "0001"},
			want: call{command: "down-to", dir: "migrations", args: []string{"0001"}},
		},
		{
			name: "create with name and type",
			args: []string{"admin", "migrate", "create", "add_payments_index", "sql"},
			want: call{command: "create", dir: "migrations", args: []string{"add_payments_index", "sql"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			cli := newTestCLI(t)
			require.NoError(t, cli.run(tt.args))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestCLI_migrate_propagatesError(t *testing.T) {
	orig := gooseRunFunc
	gooseRunFunc = func(string, *sql.DB, string, ...string) error {
		return sql.ErrConnDone
	}
	t.Cleanup(func() { gooseRunFunc = orig })

	cli := newTestCLI(t)
	err := cli.run([]string{"admin", "migrate", "up"})
	assert.Equal(t, sql.ErrConnDone, err)
}
