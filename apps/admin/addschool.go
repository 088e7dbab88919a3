package main

import (
	"context"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/school"
)

// addSchool registers a new school with a fresh trial subscription.
func (cli *commandLine) addSchool(name, email, pwd string) error {
	if cli.conf.TrialDays <= 0 {
		return school.ErrTrialNotConfigured
	}

	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	if err := cli.schoolRepo.CheckSchoolUniqueness(ctx, name, email); err != nil {
		return err
	}

	now := school.NowFunc().UTC()
	sch := school.School{
		Name:               name,
		Email:              email,
		SubscriptionExpiry: school.Today().AddDate(0, 0, cli.conf.TrialDays),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := sch.SetPassword(pwd); err != nil {
		return err
	}
	_, err := cli.schoolRepo.CreateSchool(ctx, sch)
	return err
}
