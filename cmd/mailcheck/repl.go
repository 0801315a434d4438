package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lenlo/mailcheck/internal/check"
	"github.com/lenlo/mailcheck/internal/dedup"
	"github.com/lenlo/mailcheck/internal/diag"
	"github.com/lenlo/mailcheck/internal/mbox"
	"github.com/lenlo/mailcheck/internal/writer"
)

// runREPL implements SPEC_FULL §12's minimal command subset: check,
// repair, unique, delete <set>, undelete <set>, join <set>,
// split <num> <offset>, write, quit. It is intentionally small — the full interactive
// pager/editor surface is an explicit core Non-goal.
func runREPL(box *mbox.Mailbox, logger *diag.Logger, o *rootOptions) error {
	reader := bufio.NewReader(os.Stdin)
	fmt.Fprintf(os.Stderr, "mailcheck: %s (%d messages)\n", box.Path, box.Count())
	for {
		fmt.Fprint(os.Stderr, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "check":
			c := check.NewChecker(box, logger, check.Options{Mode: check.ModeReport, Strict: o.strict})
			c.Run()

		case "repair":
			c := check.NewChecker(box, logger, check.Options{
				Mode:        check.ModeRepair,
				Strict:      o.strict,
				Interactive: o.interactive,
				Prompt:      interactiveCheckPrompt(o),
			})
			c.Run()

		case "unique":
			candidates := dedup.FindCandidates(box)
			dedup.Resolve(candidates, interactiveDedupPrompt(o))

		case "delete":
			if len(args) != 1 {
				fmt.Fprintln(os.Stderr, "usage: delete <set>")
				continue
			}
			s, err := mbox.ParseSet(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			n := box.DeleteSet(s)
			fmt.Fprintf(os.Stderr, "marked %d message(s) deleted\n", n)

		case "undelete":
			if len(args) != 1 {
				fmt.Fprintln(os.Stderr, "usage: undelete <set>")
				continue
			}
			s, err := mbox.ParseSet(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			n := box.UndeleteSet(s)
			fmt.Fprintf(os.Stderr, "undeleted %d message(s)\n", n)

		case "join":
			if len(args) != 1 {
				fmt.Fprintln(os.Stderr, "usage: join <set>")
				continue
			}
			s, err := mbox.ParseSet(args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if _, err := box.Join(s); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}

		case "split":
			if len(args) != 2 {
				fmt.Fprintln(os.Stderr, "usage: split <number> <offset>")
				continue
			}
			num, err1 := strconv.Atoi(args[0])
			offset, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				fmt.Fprintln(os.Stderr, "split: number and offset must be integers")
				continue
			}
			if _, _, err := box.Split(num, offset); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}

		case "write":
			if err := writer.Write(box, writer.Options{Backup: o.backup}); err != nil {
				fmt.Fprintln(os.Stderr, err)
			} else {
				fmt.Fprintln(os.Stderr, "written")
			}

		case "quit", "exit":
			return nil

		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		}
	}
}
