package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "treeview",
		Short: "Assistant-driven binary tree view host",
		Long: `treeview keeps a rendered binary tree in step with an assistant's
replies: it mounts a saved session, applies the operations each reply
carries, and pushes frames to connected canvases.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML configuration file (TREEVIEW_* variables override it)")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newInterpretCmd())
	return rootCmd
}
