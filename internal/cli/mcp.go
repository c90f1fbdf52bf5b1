package cli

import (
	"github.com/spf13/cobra"

	"github.com/codenav/codenav/internal/config"
	"github.com/codenav/codenav/internal/logger"
	"github.com/codenav/codenav/internal/mcpserver"
)

const mcpLongDesc = `Serve the indexing and search pipeline over MCP on stdio.

Editor agents connect to this process and call the index_repository,
search_code, and get_status tools. Log output goes to stderr; stdout is
reserved for the protocol.`

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline over MCP stdio",
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			log := logger.New(logger.WithDebug(debug))

			srv, err := mcpserver.NewServer(cfg, log)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}
}
