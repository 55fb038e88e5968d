package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/kailas-cloud/objsearch/internal/version"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version.String()),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
