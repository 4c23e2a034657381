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

var statsCmd = &cobra.Command{
	Use:   "stats <dir>",
	Short: "print per-level file counts and sizes",
	Args:  cobra.ExactArgs(1),
	Run:   runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	d, err := ldb.Open(args[0], &ldb.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	m := d.Metrics()
	fmt.Println("level   files        size")
	for level, lm := range m.Levels {
		if lm.NumFiles == 0 {
			continue
		}
		fmt.Printf("%5d   %5d   %9d\n", level, lm.NumFiles, lm.Size)
	}
}
