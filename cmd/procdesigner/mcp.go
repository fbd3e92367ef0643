package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/procdesigner/pkg/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the designer tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			reg, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			v, err := buildValidator(a.cfg)
			if err != nil {
				return err
			}
			srv := mcp.NewDesignerServer(mcp.DesignerServerDeps{
				Store:         st,
				Registry:      reg,
				Validator:     v,
				FormatVersion: a.cfg.FormatVersion,
				AsciiBin:      a.cfg.AsciiBin,
				Logger:        a.logger,
			})
			a.logger.Info("mcp server ready", "transport", "stdio")
			return srv.Serve(cmd.Context())
		},
	}
}
