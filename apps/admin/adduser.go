package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	var roles []string
	if isAdmin {
		roles = user.AllRoles
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:            uname,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		})
		return err
	}

	active := true
	_, err = cli.usrSvc.Update(ctx, usr.ID, user.UpdateUser{
		Username: uname,
		Email:    email,
		IsActive: &active,
		Roles:    roles,
		Password: pwd,
	})
	return err
}
