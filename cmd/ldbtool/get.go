// Copyright 2018 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/FrankFSM/ldb"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <dir> <key>",
	Short: "look up a single key",
	Args:  cobra.ExactArgs(2),
	Run:   runGet,
}

func runGet(cmd *cobra.Command, args []string) {
	d, err := ldb.Open(args[0], &ldb.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	value, err := d.Get([]byte(args[1]), nil)
	if err != nil {
		if ldb.IsNotFound(err) {
			fmt.Fprintln(os.Stderr, "not found")
			os.Exit(1)
		}
		log.Fatal(err)
	}
	os.Stdout.Write(value)
	fmt.Println()
}
