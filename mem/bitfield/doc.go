// Package bitfield provides a compact occupancy tracker: one bit per slot,
// with a cached count of free slots.
//
// # Overview
//
// A Bitfield records, for each of fieldSize slots, whether the slot is
// occupied (bit set) or free (bit clear). The free count is maintained
// incrementally so FreeBits is O(1), and FirstFree / FirstSet scan whole
// 64-bit words before looking at individual bits.
//
// # Construction
//
// New allocates word storage on the Go heap:
//
//	bf, err := bitfield.New(128)
//	if err != nil {
//	    return err
//	}
//
// Callers that must place the tracker inside memory they are still bringing
// under management use the two-phase Builder instead. The first phase
// reports how many bytes the word storage needs; the second builds the
// Bitfield over bytes the caller has already reserved:
//
//	b, err := bitfield.NewBuilder(128)
//	if err != nil {
//	    return err
//	}
//	buf := reserve(b.Size()) // e.g. from a bump allocator
//	var bf *bitfield.Bitfield
//	if err := b.PlaceInto(buf, &bf); err != nil {
//	    return err
//	}
//
// # Errors
//
// Any index outside [0, FieldSize()) yields ErrOutOfRange. It is never
// clamped and never confused with "no free bit", which FirstFree reports
// through its boolean result.
//
// # Thread Safety
//
// Bitfield instances are not thread-safe. Callers must serialize access.
package bitfield
