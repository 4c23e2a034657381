// Copyright 2018 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log"

	"github.com/FrankFSM/ldb"
	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair <dir>",
	Short: "rebuild a database's manifest from its table and log files",
	Args:  cobra.ExactArgs(1),
	Run:   runRepair,
}

func runRepair(cmd *cobra.Command, args []string) {
	if err := ldb.RepairDB(args[0], &ldb.Options{}); err != nil {
		log.Fatal(err)
	}
}
