package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. *App satisfies
// it and tests provide a recording stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	List(ctx context.Context, domain, search string) error
	Add(ctx context.Context, domain string) error
	Edit(ctx context.Context, domain, id string) error
	Delete(ctx context.Context, domain, id string) error
	Complete(ctx context.Context, domain, id string) error
	Sync(ctx context.Context) error
	Backup(ctx context.Context) error
	Restore(ctx context.Context, key string) error
}

const (
	helpGuest = "Available commands: register, login, exit"
	helpUser  = "Available commands: status, list <domain> [search], add <domain>, edit <domain> <id>, " +
		"delete <domain> <id>, complete <domain> <id>, sync, backup, restore [key], logout, exit"
)

// guestCommands may run before login.
var guestCommands = map[string]bool{
	"help": true, "register": true, "login": true, "exit": true, "quit": true,
}

// runREPL reads commands line by line until EOF, exit or quit. Command
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		_, _ = io.WriteString(w, "lk "+statusFn()+"> ")
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !guestCommands[cmd] && !a.isLoggedIn() {
			writeLine(w, "Please log in first")
			continue
		}

		if cmd == "exit" || cmd == "quit" {
			writeLine(w, "Bye!")
			return
		}

		if err := dispatch(ctx, a, cmd, args, w); err != nil {
			writeLine(w, "Error: "+err.Error())
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, w io.Writer) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	need := func(n int, usage string) bool {
		if len(args) < n {
			writeLine(w, "Usage: "+usage)
			return false
		}
		return true
	}

	switch cmd {
	case "help":
		if a.isLoggedIn() {
			writeLine(w, helpUser)
		} else {
			writeLine(w, helpGuest)
		}
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "status":
		return a.Status(ctx)
	case "l", "list":
		if need(1, "list <domain> [search]") {
			return a.List(ctx, arg(0), strings.Join(args[1:], " "))
		}
	case "add":
		if need(1, "add <domain>") {
			return a.Add(ctx, arg(0))
		}
	case "edit":
		if need(2, "edit <domain> <id>") {
			return a.Edit(ctx, arg(0), arg(1))
		}
	case "delete":
		if need(2, "delete <domain> <id>") {
			return a.Delete(ctx, arg(0), arg(1))
		}
	case "complete":
		if need(2, "complete <domain> <id>") {
			return a.Complete(ctx, arg(0), arg(1))
		}
	case "sync":
		return a.Sync(ctx)
	case "backup":
		return a.Backup(ctx)
	case "restore":
		return a.Restore(ctx, arg(0))
	default:
		writeLine(w, "Unknown command: "+cmd)
	}
	return nil
}

func writeLine(w io.Writer, s string) {
	_, _ = io.WriteString(w, s+"\n")
}
