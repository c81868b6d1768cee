package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	List(ctx context.Context) error
	Refresh(ctx context.Context) error
	Add(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	CheckIn(ctx context.Context, args []string) error
	CheckOut(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Reset(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the device catalog.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF
// or when the user types "exit" or "quit".
//
//	help                    show available commands
//	list | l                show the working list
//	refresh | sync | r      run a sync session and show the result
//	add                     add a device (interactive)
//	show <id>               show one device
//	checkin <id>            check a device in
//	checkout <id> [name]    check a device out
//	delete <id>             delete a device
//	status                  connectivity and last sync
//	reset                   wipe local data
//	exit | quit             leave the program
//
// Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("devices %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: (l)ist, (r)efresh, add, show <id>, checkin <id>, checkout <id> [name], delete <id>, status, reset, exit")

		case "l", "list":
			err = a.List(ctx)

		case "r", "refresh", "sync":
			err = a.Refresh(ctx)

		case "add":
			err = a.Add(ctx)

		case "show":
			err = a.Show(ctx, args)

		case "checkin":
			err = a.CheckIn(ctx, args)

		case "checkout":
			err = a.CheckOut(ctx, args)

		case "delete", "rm":
			err = a.Delete(ctx, args)

		case "status":
			err = a.Status(ctx)

		case "reset":
			err = a.Reset(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
