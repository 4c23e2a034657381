// Copyright 2018 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"log"

	"github.com/FrankFSM/ldb"
	"github.com/spf13/cobra"
)

var (
	scanStart string
	scanEnd   string
	scanLimit int
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "print every key/value pair in a range",
	Args:  cobra.ExactArgs(1),
	Run:   runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanStart, "start", "", "first key to print (inclusive); default is the first key")
	scanCmd.Flags().StringVar(&scanEnd, "end", "", "key to stop before (exclusive); default scans to the last key")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "maximum number of pairs to print (0 means unlimited)")
}

func runScan(cmd *cobra.Command, args []string) {
	d, err := ldb.Open(args[0], &ldb.Options{})
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	it, err := d.NewIter(nil)
	if err != nil {
		log.Fatal(err)
	}
	defer it.Close()

	end := []byte(scanEnd)
	n := 0
	for valid := it.First(); valid; valid = it.Next() {
		if scanStart != "" && bytes.Compare(it.Key(), []byte(scanStart)) < 0 {
			continue
		}
		if scanEnd != "" && bytes.Compare(it.Key(), end) >= 0 {
			break
		}
		fmt.Printf("%s -> %s\n", it.Key(), it.Value())
		n++
		if scanLimit > 0 && n >= scanLimit {
			break
		}
	}
}
