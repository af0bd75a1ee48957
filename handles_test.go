package gfx

import "testing"

func TestSlotTableInsertGet(t *testing.T) {
	var tab slotTable[int]

	h := tab.Insert(42)
	if h == NilHandle {
		t.Fatal("insert returned the nil handle")
	}
	v, ok := tab.Get(h)
	if !ok || v != 42 {
		t.Errorf("got %v %v, want 42 true", v, ok)
	}
	if tab.Len() != 1 {
		t.Errorf("len = %d, want 1", tab.Len())
	}
}

func TestSlotTableStaleHandle(t *testing.T) {
	var tab slotTable[string]

	h := tab.Insert("a")
	if _, ok := tab.Remove(h); !ok {
		t.Fatal("remove of live handle failed")
	}

	// Slot gets reused, but the old handle must stay dead.
	h2 := tab.Insert("b")
	if h2 == h {
		t.Fatal("handle value was reissued")
	}
	if _, ok := tab.Get(h); ok {
		t.Error("stale handle still resolves")
	}
	if _, ok := tab.Remove(h); ok {
		t.Error("stale handle removed twice")
	}
	if v, ok := tab.Get(h2); !ok || v != "b" {
		t.Errorf("new handle broken: %v %v", v, ok)
	}
}

func TestSlotTableHandlesNeverRepeat(t *testing.T) {
	var tab slotTable[int]
	seen := make(map[Handle]bool)

	// Churn one slot hard; every handle must be fresh.
	for i := 0; i < 1000; i++ {
		h := tab.Insert(i)
		if seen[h] {
			t.Fatalf("handle %#x issued twice at iteration %d", uint64(h), i)
		}
		seen[h] = true
		tab.Remove(h)
	}
}

func TestSlotTableNilHandle(t *testing.T) {
	var tab slotTable[int]
	tab.Insert(1)

	if _, ok := tab.Get(NilHandle); ok {
		t.Error("nil handle resolved")
	}
	if _, ok := tab.Remove(NilHandle); ok {
		t.Error("nil handle removed")
	}
}

func TestSlotTableEachAndClear(t *testing.T) {
	var tab slotTable[int]

	h1 := tab.Insert(1)
	h2 := tab.Insert(2)
	h3 := tab.Insert(3)
	tab.Remove(h2)

	sum := 0
	tab.Each(func(h Handle, v int) {
		if h != h1 && h != h3 {
			t.Errorf("unexpected handle %#x", uint64(h))
		}
		sum += v
	})
	if sum != 4 {
		t.Errorf("sum = %d, want 4", sum)
	}

	cleared := 0
	tab.Clear(func(int) { cleared++ })
	if cleared != 2 {
		t.Errorf("cleared %d, want 2", cleared)
	}
	if tab.Len() != 0 {
		t.Errorf("len = %d after clear", tab.Len())
	}
	if _, ok := tab.Get(h1); ok {
		t.Error("handle survived clear")
	}
}

func TestSlotTableSet(t *testing.T) {
	var tab slotTable[int]

	h := tab.Insert(1)
	if !tab.Set(h, 9) {
		t.Fatal("set of live handle failed")
	}
	if v, _ := tab.Get(h); v != 9 {
		t.Errorf("got %d, want 9", v)
	}

	tab.Remove(h)
	if tab.Set(h, 5) {
		t.Error("set of stale handle succeeded")
	}
}
