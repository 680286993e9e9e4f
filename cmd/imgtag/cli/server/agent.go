package server

import (
	"fmt"

	"github.com/mwantia/imgtag/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/mwantia/imgtag/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the imgtag library agent",
		Long: `Start the imgtag library agent.

The agent ingests the configured library directories and keeps the library
in sync with file changes below them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			if len(cfg.Library.Directories) == 0 {
				return fmt.Errorf("no library directories configured (library.directories)")
			}

			agent := agent.NewAgent(cfg)
			if err := agent.Serve(cmd.Context()); err != nil {
				return err
			}

			return nil
		},
	}

	return cmd
}
