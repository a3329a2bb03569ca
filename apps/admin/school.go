package main

import (
	"context"
	"fmt"

	"github.com/DexterJames00/EduTrack360/core/registration"
	"github.com/DexterJames00/EduTrack360/core/school"
)

func (cli *commandLine) addSchool(code, name string) error {
	sch, err := cli.schools.CreateSchool(context.Background(), school.NewSchool{Code: code, Name: name})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "school %s created: %s (%s)\n", sch.Code, sch.Name, sch.ID)
	return nil
}

// addStudent creates a student under a generated code and prints it.
func (cli *commandLine) addStudent(ns school.NewStudent) error {
	std, err := cli.schools.CreateStudent(context.Background(), ns)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student %s created: %s (%s)\n", std.Code, std.FullName(), std.ID)
	return nil
}

func (cli *commandLine) invite(studentID string) error {
	ctx := context.Background()
	std, err := cli.schools.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	sch, err := cli.schools.GetSchool(ctx, std.SchoolID)
	if err != nil {
		return err
	}
	cred, err := cli.creds.Current(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, registration.InviteLink(cred.Handle, sch, std))
	fmt.Fprintf(cli.out, "or send: %s %s\n", sch.Code, std.Code)
	return nil
}

func (cli *commandLine) unlink(studentID string) error {
	if err := cli.channels.Unlink(context.Background(), studentID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student %s unlinked\n", studentID)
	return nil
}
