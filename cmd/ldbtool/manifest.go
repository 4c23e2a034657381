// Copyright 2018 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"

	"github.com/FrankFSM/ldb"
	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <dir>",
	Short: "dump the current version's table files, level by level",
	Args:  cobra.ExactArgs(1),
	Run:   runManifest,
}

func runManifest(cmd *cobra.Command, args []string) {
	d, err := ldb.Open(args[0], &ldb.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	for _, t := range d.Tables() {
		fmt.Printf("L%d  #%06d  %10d bytes  [%q, %q]\n",
			t.Level, t.FileNum, t.Size, t.Smallest, t.Largest)
	}
}
