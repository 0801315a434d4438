package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lenlo/mailcheck/internal/byteio"
	"github.com/lenlo/mailcheck/internal/check"
	"github.com/lenlo/mailcheck/internal/dedup"
	"github.com/lenlo/mailcheck/internal/diag"
	"github.com/lenlo/mailcheck/internal/mbox"
	"github.com/lenlo/mailcheck/internal/progress"
	"github.com/lenlo/mailcheck/internal/writer"
)

var (
	// Set via -ldflags at build time.
	version = "dev"
	commit  = ""
	date    = ""
)

type ctxKey struct{}

// rootOptions are the flags shared by check/repair/unique, per SPEC_FULL
// §6's common option surface.
type rootOptions struct {
	strict      bool
	noMmap      bool
	backup      bool
	interactive bool
	quiet       bool
	verbose     bool
	repl        bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailcheck [flags] mbox-file",
		Short: "mailcheck - mbox spool consistency checker and repairer",
	}

	var showVersion bool
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "V", false, "Print version and exit")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Printf("mailcheck %s", version)
			if commit != "" {
				fmt.Printf(" (%s)", commit)
			}
			if date != "" {
				fmt.Printf(" built %s", date)
			}
			fmt.Println()
			os.Exit(0)
		}
	}

	checkCmd := &cobra.Command{
		Use:   "check mbox-file",
		Short: "Report mailbox inconsistencies without modifying anything",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	addCommonFlags(checkCmd)

	repairCmd := &cobra.Command{
		Use:   "repair mbox-file",
		Short: "Repair mailbox inconsistencies in place",
		Args:  cobra.ExactArgs(1),
		RunE:  runRepair,
	}
	addCommonFlags(repairCmd)

	uniqueCmd := &cobra.Command{
		Use:   "unique mbox-file",
		Short: "Find and resolve duplicate messages",
		Args:  cobra.ExactArgs(1),
		RunE:  runUnique,
	}
	addCommonFlags(uniqueCmd)

	rootCmd.AddCommand(checkCmd, repairCmd, uniqueCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func addCommonFlags(cmd *cobra.Command) {
	o := &rootOptions{}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = false
	cmd.Flags().BoolVarP(&o.strict, "strict", "s", false, "Also run the strict-only checks (missing Content-Length, Message-ID, stray >From, From/Date presence, illegal header bytes)")
	cmd.Flags().BoolVar(&o.noMmap, "no-mmap", false, "Never memory-map the mailbox file")
	cmd.Flags().BoolVarP(&o.backup, "backup", "b", false, "Keep a backup copy (mbox-file~) before writing")
	cmd.Flags().BoolVarP(&o.interactive, "interactive", "i", false, "Confirm each repair/resolution interactively")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "Suppress notice and warning diagnostics")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Emit additional diagnostic detail")
	cmd.Flags().BoolVarP(&o.repl, "repl", "r", false, "Drop into the interactive command REPL after the initial pass")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, o))
		return nil
	}
}

func optionsFrom(cmd *cobra.Command) *rootOptions {
	return cmd.Context().Value(ctxKey{}).(*rootOptions)
}

func newLogger(o *rootOptions) *diag.Logger {
	lg := diag.NewLogger(log.New(os.Stderr, "", 0), &diag.Counter{})
	lg.Quiet = o.quiet
	lg.Verbose = o.verbose
	return lg
}

func loadMailbox(path string, o *rootOptions) (*mbox.Mailbox, *diag.Logger, error) {
	logger := newLogger(o)
	box, diags, err := mbox.Load(path, byteio.Options{NoMmap: o.noMmap})
	if err != nil {
		return nil, logger, err
	}
	for _, d := range diags {
		logger.Report(d)
	}
	return box, logger, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	o := optionsFrom(cmd)
	box, logger, err := loadMailbox(args[0], o)
	if err != nil {
		return err
	}
	defer box.Close()

	c := check.NewChecker(box, logger, check.Options{Mode: check.ModeReport, Strict: o.strict})
	c.Run()

	if o.repl {
		return runREPL(box, logger, o)
	}
	if logger.Counter.Warnings() > 0 {
		os.Exit(exitMismatch)
	}
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	o := optionsFrom(cmd)
	box, logger, err := loadMailbox(args[0], o)
	if err != nil {
		return err
	}
	defer box.Close()

	c := check.NewChecker(box, logger, check.Options{
		Mode:        check.ModeRepair,
		Strict:      o.strict,
		Interactive: o.interactive,
		Prompt:      interactiveCheckPrompt(o),
	})
	runWithProgress(o, "repair", box.Count(), c.Run)

	if o.repl {
		return runREPL(box, logger, o)
	}
	if box.Dirty() {
		return writer.Write(box, writer.Options{Backup: o.backup})
	}
	return nil
}

func runUnique(cmd *cobra.Command, args []string) error {
	o := optionsFrom(cmd)
	box, logger, err := loadMailbox(args[0], o)
	if err != nil {
		return err
	}
	defer box.Close()

	var candidates []dedup.Pair
	runWithProgress(o, "unique", box.Count(), func() {
		candidates = dedup.FindCandidates(box)
	})
	dedup.Resolve(candidates, interactiveDedupPrompt(o))

	if o.repl {
		return runREPL(box, logger, o)
	}
	if box.Dirty() {
		return writer.Write(box, writer.Options{Backup: o.backup})
	}
	return nil
}

// runWithProgress runs work on a goroutine while driving a spinner/counter
// TUI off a progress.Reporter, the same split the teacher uses between its
// syncer goroutines and cmd/gomap/tui.go's Bubble Tea models. Interactive
// repairs/resolutions skip the spinner entirely since they already hold
// the terminal for per-occurrence prompts.
func runWithProgress(o *rootOptions, phase string, total int, work func()) {
	if o.interactive {
		work()
		return
	}
	reporter := progress.NewReporter(total + 1)
	reporter.Start(phase, "", total)
	done := make(chan struct{})
	go func() {
		work()
		reporter.Done(phase, nil)
		reporter.Close()
		close(done)
	}()
	_ = runProgressTUI(phase, reporter.Events())
	<-done
}

// Exit codes, per SPEC_FULL §12's EX_* mapping.
const (
	exitOK       = 0
	exitUsage    = 64 // EX_USAGE
	exitDataErr  = 65 // EX_DATAERR
	exitNoInput  = 66 // EX_NOINPUT
	exitCantCrt  = 73 // EX_CANTCREAT
	exitIOErr    = 74 // EX_IOERR
	exitMismatch = 1  // plain nonzero: "check found problems"
)

func exitCodeFor(err error) int {
	if os.IsNotExist(err) {
		return exitNoInput
	}
	return exitDataErr
}
