package app

import (
	"github.com/spf13/cobra"
	"github.com/trufnetwork/kwil-db/app"

	ssoVersion "github.com/ssonetwork/node/cmd/version"
)

// RootCmd creates a root command that reports the SSO node version instead
// of the embedded kwil-db version.
func RootCmd() *cobra.Command {
	cmd := app.RootCmd()

	for _, subcmd := range cmd.Commands() {
		if subcmd.Name() == "version" {
			cmd.RemoveCommand(subcmd)
			break
		}
	}

	cmd.AddCommand(ssoVersion.NewVersionCmd())

	return cmd
}
