// +build 386

package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right
	// by PageShift) and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// LargePageShift is equal to log2(LargePageSize). The weird machine
	// runs entirely behind PSE (4MiB) page-directory entries; there are
	// no intermediate page tables for the identity-mapped regions.
	LargePageShift = 22

	// LargePageSize defines the size in bytes of a PSE large page.
	LargePageSize = uintptr(1 << LargePageShift)
)
