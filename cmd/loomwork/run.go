package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gitrdm/loomwork/internal/repl"
)

// newRunCommand plays back a script of ask/reply/unlock/scratch lines
// non-interactively, the way a CI job or a saved transcript would, using
// the same command grammar the interactive repl accepts.
func newRunCommand() *cobra.Command {
	var question string
	var snapshotPath string
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Play back a script of ask/reply/unlock/scratch commands non-interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptPath = args[0]

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

			runner := repl.NewRunner(afero.NewOsFs())
			answer, err := recoverFatal(func() (string, error) {
				return runner.RunScript(session, scriptPath, cmd.OutOrStdout())
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
