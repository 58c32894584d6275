package main

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"github.com/quintans/stamp"
)

func main() {
	cmd := newRootCmd(afero.NewOsFs(), stamp.ExecRunner{}, os.Stdout, os.Stderr)
	err := cmd.ExecuteContext(context.Background())
	noError(err)
}

func noError(err error) {
	if err == nil {
		return
	}

	printError(os.Stderr, err)
	os.Exit(1)
}
