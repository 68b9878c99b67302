// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build windows

package binderalloc

import (
	"errors"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var osPageSize = os.Getpagesize()

// mmap on Windows is a two-step process: CreateFileMapping gets a handle,
// MapViewOfFile maps a view of it into the address space. handleMap lets us
// recover the handle from the address at unmap time.
var (
	handleMu  sync.Mutex
	handleMap = map[uintptr]windows.Handle{}
)

func mmapPage(size int) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if addr == 0 {
		windows.CloseHandle(h)
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}

	if addr&uintptr(osPageSize-1) != 0 {
		panic("binderalloc: mmap returned a non-page-aligned address")
	}

	handleMu.Lock()
	handleMap[addr] = h
	handleMu.Unlock()

	var b []byte
	sh := (*sliceHeader)(unsafe.Pointer(&b))
	sh.Data = addr
	sh.Len = size
	sh.Cap = size
	return b, nil
}

func munmapPage(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))

	handleMu.Lock()
	h, ok := handleMap[addr]
	if ok {
		delete(handleMap, addr)
	}
	handleMu.Unlock()

	if err := windows.UnmapViewOfFile(addr); err != nil {
		return err
	}
	if !ok {
		return errors.New("binderalloc: unknown mapping base address")
	}
	return windows.CloseHandle(h)
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}
