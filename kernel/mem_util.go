package kernel

import (
	"reflect"
	"unsafe"
)

// Uint32View overlays a []uint32 slice of the given length on top of the
// memory region starting at addr. It is used throughout kernel/gdt,
// kernel/idt, kernel/mem and kernel/wm to read and write page directories,
// page tables, TSS frames and descriptor tables as plain dword arrays
// instead of through per-field unsafe.Pointer casts. Every hardware
// structure this kernel touches is dword-granular, so this is the only
// raw-memory overlay the tree needs.
func Uint32View(addr uintptr, len int) []uint32 {
	return *(*[]uint32)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  len,
		Cap:  len,
		Data: addr,
	}))
}
