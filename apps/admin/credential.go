package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) activateCredential(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cli.conf.Bot.RequestTimeout)
	defer cancel()

	cred, err := cli.creds.Activate(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "credential %s activated for @%s\n", cred.MaskedToken(), cred.Handle)
	return nil
}

func (cli *commandLine) setWebhook(publicURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cli.conf.Bot.RequestTimeout)
	defer cancel()

	hookURL, err := cli.creds.ConfigureWebhook(ctx, publicURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "webhook registered at %s\n", hookURL)
	return nil
}
