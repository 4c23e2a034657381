// Copyright 2013 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldb

import "path/filepath"

// DestroyDB removes every file belonging to the database at dirname,
// leaving unrelated files in the directory untouched. It does not lock the
// directory first, so the caller must ensure no DB is open against it.
func DestroyDB(dirname string, opts *Options) error {
	opts = opts.EnsureDefaults()
	fs := opts.FileSystem

	list, err := fs.List(dirname)
	if err != nil {
		return err
	}
	for _, name := range list {
		if _, _, ok := parseDBFilename(name); !ok {
			continue
		}
		if err := fs.Remove(filepath.Join(dirname, name)); err != nil {
			return err
		}
	}
	return nil
}
