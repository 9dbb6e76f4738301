package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bot",
		Short: "Telegram bot for registering event participants",
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCommand(),
		newParseCommand(),
		newCheckContactCommand(),
	)
	return root
}
