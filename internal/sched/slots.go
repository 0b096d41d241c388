package sched

// SlotTable holds the K running slots and the schedule order counter.
type SlotTable struct {
	slots []*Job
	next  int64
}

func NewSlotTable(k int) *SlotTable {
	return &SlotTable{slots: make([]*Job, k)}
}

func (t *SlotTable) Len() int { return len(t.slots) }

// Busy counts occupied slots.
func (t *SlotTable) Busy() int {
	n := 0
	for _, j := range t.slots {
		if j != nil {
			n++
		}
	}
	return n
}

// FirstFree returns the lowest empty slot index.
func (t *SlotTable) FirstFree() (int, bool) {
	for i, j := range t.slots {
		if j == nil {
			return i, true
		}
	}
	return -1, false
}

// TryOccupy puts j into the first free slot.
func (t *SlotTable) TryOccupy(j *Job) (int, bool) {
	i, ok := t.FirstFree()
	if !ok {
		return -1, false
	}
	t.occupy(i, j)
	return i, true
}

func (t *SlotTable) occupy(i int, j *Job) {
	t.slots[i] = j
	j.Slot = i
}

func (t *SlotTable) OccupantAt(i int) *Job {
	if i < 0 || i >= len(t.slots) {
		return nil
	}
	return t.slots[i]
}

// Vacate clears slot i and the occupant's schedule order. The caller must
// follow up with promotion.
func (t *SlotTable) Vacate(i int) *Job {
	j := t.OccupantAt(i)
	if j == nil {
		return nil
	}
	t.slots[i] = nil
	j.Slot = -1
	j.Order = -1
	return j
}

// AssignOrder stamps the occupant of slot i with the next schedule order.
func (t *SlotTable) AssignOrder(i int) int64 {
	j := t.OccupantAt(i)
	if j == nil {
		return -1
	}
	j.Order = t.next
	t.next++
	return j.Order
}

// Newest returns the slot whose occupant has the largest schedule order,
// i.e. the one placed most recently. This is the eviction victim.
func (t *SlotTable) Newest() int {
	idx := -1
	var best int64 = -1
	for i, j := range t.slots {
		if j == nil {
			continue
		}
		if idx < 0 || j.Order > best {
			idx, best = i, j.Order
		}
	}
	return idx
}

func (t *SlotTable) reset() {
	for i, j := range t.slots {
		if j != nil {
			j.Slot = -1
			j.Order = -1
		}
		t.slots[i] = nil
	}
}
