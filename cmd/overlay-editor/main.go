package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	overlayeditor "github.com/menta2k/overlay-editor"
	"github.com/menta2k/overlay-editor/internal/cli"
)

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(overlayeditor.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
