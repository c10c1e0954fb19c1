package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitrdm/loomwork/internal/repl"
	"github.com/gitrdm/loomwork/internal/snapshot"
	"github.com/gitrdm/loomwork/pkg/scheduler"
	"github.com/gitrdm/loomwork/pkg/store"
)

func newReplCommand() *cobra.Command {
	var question string
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive ask/reply/unlock/scratch session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if question == "" {
				question = cfg.Store.RootQuestion
			}
			if snapshotPath == "" {
				snapshotPath = cfg.Snapshot.Path
			}
			log, err := newLogger(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			session, err := openOrCreateSession(snapshotPath, question)
			if err != nil {
				return err
			}
			defer session.Close()

			answer, err := recoverFatal(func() (string, error) {
				return repl.NewLoop(session, os.Stdin, cmd.OutOrStdout()).Run()
			})
			if err != nil {
				return err
			}
			if answer != "" {
				fmt.Fprintln(cmd.OutOrStdout(), answer)
			}
			return saveSession(session, snapshotPath)
		},
	}

	cmd.Flags().StringVar(&question, "question", "", "root question to ask (required unless resuming a snapshot with one already asked)")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot file to resume from and save to (default: config's snapshot.path)")
	return cmd
}

// openOrCreateSession resumes snapshotPath if it already exists on disk,
// otherwise asks question as a fresh root question. A resumed session
// round-trips through snapshot.SessionSnapshot so the root answer
// promise and the previously current context come back intact, not just
// the bare Store/Scheduler pair.
func openOrCreateSession(snapshotPath, question string) (*scheduler.RootQuestionSession, error) {
	if snapshotPath != "" {
		if _, err := os.Stat(snapshotPath); err == nil {
			return snapshot.LoadSession(snapshotPath)
		}
	}
	if question == "" {
		return nil, fmt.Errorf("no snapshot to resume and no --question given")
	}

	db := store.New(nil)
	sched := scheduler.New(db, nil)
	return scheduler.NewRootQuestionSession(sched, question)
}

// saveSession exports session (including which context was current and
// which promise is the root's answer) to snapshotPath, if one was given.
func saveSession(session *scheduler.RootQuestionSession, snapshotPath string) error {
	if snapshotPath == "" {
		return nil
	}
	return snapshot.SaveSession(session, snapshotPath)
}
