// Copyright 2018 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log"

	"github.com/FrankFSM/ldb"
	"github.com/spf13/cobra"
)

var putSync bool

var putCmd = &cobra.Command{
	Use:   "put <dir> <key> <value>",
	Short: "write a single key/value pair",
	Args:  cobra.ExactArgs(3),
	Run:   runPut,
}

func init() {
	putCmd.Flags().BoolVar(&putSync, "sync", false, "fsync the WAL before returning")
}

func runPut(cmd *cobra.Command, args []string) {
	d, err := ldb.Open(args[0], &ldb.Options{CreateIfMissing: true})
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	if err := d.Set([]byte(args[1]), []byte(args[2]), &ldb.WriteOptions{Sync: putSync}); err != nil {
		log.Fatal(err)
	}
}
