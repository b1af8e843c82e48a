package main

import (
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"library-catalog/gui"
)

func (a *app) guiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gui.New(fyneapp.NewWithID("local.library.catalog"), a.mgr).Run()
		},
	}
}
