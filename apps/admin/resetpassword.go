package main

import (
	"context"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/school"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	sch, err := cli.schoolRepo.GetSchoolByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := sch.SetPassword(pwd); err != nil {
		return err
	}
	sch.UpdatedAt = school.NowFunc().UTC()
	_, err = cli.schoolRepo.UpdateSchool(ctx, sch)
	return err
}
