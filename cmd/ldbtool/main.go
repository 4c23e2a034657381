// Copyright 2018 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ldbtool is a small introspection and administration CLI for a
// database directory, per spec section 6's CLI surface.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ldbtool [command] (flags)",
	Short: "inspect and administer an ldb database directory",
	Long:  ``,
}

func main() {
	log.SetFlags(0)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		getCmd,
		putCmd,
		scanCmd,
		manifestCmd,
		statsCmd,
		repairCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
