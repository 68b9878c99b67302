// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package binderalloc

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var osPageSize = os.Getpagesize()

func mmapPage(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}

	if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageSize-1) != 0 {
		panic("binderalloc: mmap returned a non-page-aligned address")
	}

	return b, nil
}

func munmapPage(b []byte) error {
	return unix.Munmap(b)
}
