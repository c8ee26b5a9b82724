package peers

import (
	"net/netip"

	"github.com/google/btree"
)

// Index holds one PeerRecord per peer address, ordered by address, together
// with the sums of their readings. The sums are maintained incrementally on
// every change, never by rescanning, and always equal the totals over the
// records currently held.
type Index struct {
	tree *btree.BTreeG[*PeerRecord]

	sumTemperature  int64
	sumIllumination int64
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		tree: btree.NewG(16, func(a, b *PeerRecord) bool { return a.Addr.Less(b.Addr) }),
	}
}

// InsertOrGet returns the record for addr, inserting a zeroed one if the
// address is new. The second result tells whether an insert took place.
// Records must only be changed through Update, or the sums go stale.
func (i *Index) InsertOrGet(addr netip.Addr) (*PeerRecord, bool) {
	if rec, ok := i.tree.Get(&PeerRecord{Addr: addr}); ok {
		return rec, false
	}

	rec := &PeerRecord{Addr: addr}
	i.tree.ReplaceOrInsert(rec)

	return rec, true
}

// Update replaces the readings of addr: the old contribution is subtracted
// from the sums, the record overwritten, and the new contribution added. It
// reports whether addr was new.
func (i *Index) Update(addr netip.Addr, temperature int8, illumination uint8) bool {
	rec, created := i.InsertOrGet(addr)

	i.sumTemperature -= int64(rec.Temperature)
	i.sumIllumination -= int64(rec.Illumination)

	rec.Temperature = temperature
	rec.Illumination = illumination

	i.sumTemperature += int64(rec.Temperature)
	i.sumIllumination += int64(rec.Illumination)

	return created
}

// Remove forgets addr and its contribution to the sums.
func (i *Index) Remove(addr netip.Addr) bool {
	rec, ok := i.tree.Delete(&PeerRecord{Addr: addr})
	if !ok {
		return false
	}

	i.sumTemperature -= int64(rec.Temperature)
	i.sumIllumination -= int64(rec.Illumination)

	return true
}

// Ascend calls fn for every record in address order until fn returns false.
func (i *Index) Ascend(fn func(PeerRecord) bool) {
	i.tree.Ascend(func(rec *PeerRecord) bool {
		return fn(*rec)
	})
}

// Len returns the number of peers.
func (i *Index) Len() int {
	return i.tree.Len()
}

// SumTemperature returns the sum of the latest temperature of every peer.
func (i *Index) SumTemperature() int64 {
	return i.sumTemperature
}

// SumIllumination returns the sum of the latest illumination of every peer.
func (i *Index) SumIllumination() int64 {
	return i.sumIllumination
}

// Averages returns the integer averages of the latest readings. Both are 0
// for an empty index.
func (i *Index) Averages() (int8, uint8) {
	n := int64(i.tree.Len())
	if n == 0 {
		return 0, 0
	}
	return int8(i.sumTemperature / n), uint8(i.sumIllumination / n)
}

// Clear forgets every peer.
func (i *Index) Clear() {
	i.tree.Clear(false)
	i.sumTemperature = 0
	i.sumIllumination = 0
}
