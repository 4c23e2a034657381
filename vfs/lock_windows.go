// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package vfs

import (
	"fmt"
	"io"
)

func (osFS) Lock(name string) (io.Closer, error) {
	return nil, fmt.Errorf("vfs: file locking is not implemented on windows")
}
