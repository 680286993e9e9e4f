package main

import (
	"fmt"
	"os"

	"github.com/mwantia/imgtag/cmd/imgtag/cli"
	"github.com/mwantia/imgtag/cmd/imgtag/cli/client"
	"github.com/mwantia/imgtag/cmd/imgtag/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	root.AddCommand(client.NewImageCommand())
	root.AddCommand(client.NewTagCommand())
	root.AddCommand(client.NewSearchCommand())
	root.AddCommand(client.NewIngestCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
