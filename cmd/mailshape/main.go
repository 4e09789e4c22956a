// Command mailshape composes transport-ready email messages and reshapes
// MIME part trees into their canonical form.
package main

import (
	"github.com/spf13/cobra"

	"github.com/shineum/mailshape/cmd/mailshape/cmd"
)

func main() {
	err := cmd.Execute()
	cobra.CheckErr(err)
}
