// Package main is the dlt command, which runs the DLT estimators on correspondence files.
package main

import (
	"os"

	"go.viam.com/dlt/logging"
)

func main() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.Global().Fatal(err)
	}
}
