package cli

import (
	"context"
	"fmt"
	"strings"
)

func (a *App) getStatus() string {
	parts := make([]string, 0, 2)
	if a.userName != "" {
		parts = append(parts, a.userName)
	}
	parts = append(parts, string(a.mode()))
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

// Root starts the connectivity monitor, asks for credentials and runs the
// REPL until the user exits.
func (a *App) Root(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.net.Run(ctx)

	a.printf("Welcome to LifeKeeper (type 'help' for commands)\n")
	if err := a.Login(ctx); err != nil {
		a.printf("Error: %v\n", err)
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
