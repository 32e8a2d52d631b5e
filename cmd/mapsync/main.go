package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/username/mapsync/pkg/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "mapsync",
		Short:         "Index primary chain blocks to the secondary chain blocks they commit to",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(newRunCmd(), newSyncCmd(), newLookupCmd(), newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}
