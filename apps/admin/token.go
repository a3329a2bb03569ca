package main

import (
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/DexterJames00/EduTrack360/apps/api/echo"
	"github.com/DexterJames00/EduTrack360/core"
)

var errUnknownRole = errors.New("role must be admin or instructor")

func (cli *commandLine) issueToken(subject, name string, roles []string) error {
	for i, role := range roles {
		role = core.CleanString(role, true /* lower */)
		if role != echoapi.RoleAdmin && role != echoapi.RoleInstructor {
			return errors.Wrapf(errUnknownRole, "got %q", role)
		}
		roles[i] = role
	}

	claims := echoapi.NewClaims(cli.conf.AppName, subject, name, roles, cli.conf.Server.JWTExpirationDelta)
	token, err := echoapi.GenerateToken(claims, []byte(cli.conf.SecretKey))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
