//go:build linux

package slab

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// unixPager implements osPager on Linux using golang.org/x/sys/unix,
// mirroring the mmap/munmap/madvise wrapping style of the teacher's
// src/runtime/mem_linux.go (kept in the pack as
// other_examples/.../mem_linux.go.go) and the mmap usage in
// fmstephe-memorymanager and GoogleCloudPlatform-gcsfuse's vendored
// FUSE bindings.
type unixPager struct{}

func newUnixPager() osPager {
	return unixPager{}
}

func (unixPager) mapPage(size uintptr) (unsafe.Pointer, error) {
	b, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errors.Wrap(err, "slab: anonymous mmap failed")
	}
	return unsafe.Pointer(&b[0]), nil
}

func (unixPager) unmap(ptr unsafe.Pointer, size uintptr) error {
	b := unsafe.Slice((*byte)(ptr), int(size))
	if err := unix.Munmap(b); err != nil {
		return errors.Wrap(err, "slab: munmap failed")
	}
	return nil
}

func (unixPager) noHugePage(ptr unsafe.Pointer, size uintptr) {
	b := unsafe.Slice((*byte)(ptr), int(size))
	// Best-effort: a madvise failure here is not fatal, it just means
	// the kernel may back this region with a transparent huge page.
	_ = unix.Madvise(b, unix.MADV_NOHUGEPAGE)
}

func (unixPager) currentThreadID() int32 {
	return int32(unix.Gettid())
}
