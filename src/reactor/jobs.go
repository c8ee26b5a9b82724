package reactor

import (
	"github.com/google/btree"
)

// Op selects the kind of readiness a job waits for.
type Op int

const (
	// Read fires when the descriptor is readable.
	Read Op = iota
	// Write fires when the descriptor is writable.
	Write

	opCount
)

// String returns the string representation of an Op
func (o Op) String() string {
	switch o {
	case Read:
		return "Read"
	case Write:
		return "Write"
	default:
		return "Unknown"
	}
}

// Handler is invoked on the reactor goroutine when fd is ready for op. The
// closure carries whatever context the caller needs.
type Handler func(fd int, op Op)

type job struct {
	handler Handler
	oneshot bool
}

// entry holds the pending jobs of one descriptor, one slot per Op.
type entry struct {
	fd   int
	jobs [opCount]*job
}

func (e *entry) empty() bool {
	for _, j := range e.jobs {
		if j != nil {
			return false
		}
	}
	return true
}

// jobTable maps descriptors to their entries. Entries whose slots are all
// empty stay in the table until the reactor resynchronizes them with the
// kernel, so that their interest can be withdrawn there too.
type jobTable struct {
	tree *btree.BTreeG[*entry]
}

func newJobTable() *jobTable {
	return &jobTable{
		tree: btree.NewG(8, func(a, b *entry) bool { return a.fd < b.fd }),
	}
}

func (t *jobTable) lookup(fd int) *entry {
	e, ok := t.tree.Get(&entry{fd: fd})
	if !ok {
		return nil
	}
	return e
}

// post installs a job in the (fd, op) slot. It returns false, and changes
// nothing, if the slot is already taken.
func (t *jobTable) post(fd int, op Op, oneshot bool, h Handler) bool {
	e := t.lookup(fd)
	if e == nil {
		e = &entry{fd: fd}
		t.tree.ReplaceOrInsert(e)
	}

	if e.jobs[op] != nil {
		return false
	}

	e.jobs[op] = &job{handler: h, oneshot: oneshot}

	return true
}

// remove clears the (fd, op) slot and reports whether there was a job in it.
func (t *jobTable) remove(fd int, op Op) bool {
	e := t.lookup(fd)
	if e == nil || e.jobs[op] == nil {
		return false
	}

	e.jobs[op] = nil

	return true
}

// drop forgets fd entirely.
func (t *jobTable) drop(fd int) {
	t.tree.Delete(&entry{fd: fd})
}

func (t *jobTable) clear() {
	t.tree.Clear(false)
}

// pending counts the jobs across all descriptors.
func (t *jobTable) pending() int {
	n := 0
	t.tree.Ascend(func(e *entry) bool {
		for _, j := range e.jobs {
			if j != nil {
				n++
			}
		}
		return true
	})
	return n
}

// entries returns a snapshot of the table in descriptor order. The snapshot
// may be walked while the table is being modified.
func (t *jobTable) entries() []*entry {
	out := make([]*entry, 0, t.tree.Len())
	t.tree.Ascend(func(e *entry) bool {
		out = append(out, e)
		return true
	})
	return out
}
