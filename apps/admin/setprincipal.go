package main

import (
	"context"
	"fmt"
)

// setPrincipal creates or replaces the principal's login.
func (cli *commandLine) setPrincipal(ctx context.Context, email, pwd string) error {
	if err := cli.sessions.SetPrincipal(ctx, email, pwd); err != nil {
		return err
	}
	fmt.Printf("principal login set for %s\n", email)
	return nil
}
