// Package region supplies the raw memory that allocators carve into blocks.
//
// A Source hands out contiguous byte regions and takes them back. The
// allocators in mem/alloc treat it as an opaque capability: they never
// assume where the bytes come from, only that a region stays put until it
// is released.
//
// Implementations:
//
//   - Heap: regions come from the Go heap, bounded by a byte budget that
//     defaults to the machine's free memory.
//   - Mmap: anonymous private mappings on unix; a Heap elsewhere.
//
// Both reject releasing a region they did not hand out, or releasing the
// same region twice.
package region
