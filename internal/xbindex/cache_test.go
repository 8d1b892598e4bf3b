package xbindex

import "testing"

func TestPageCacheGetPutInvalidateClear(t *testing.T) {
	c := newPageCache(4)
	if _, ok := c.get(1); ok {
		t.Fatal("get on empty cache reported a hit")
	}
	p := &Page{Attributes: attrLeaf}
	c.put(1, p)
	got, ok := c.get(1)
	if !ok || got != p {
		t.Fatalf("get(1) = (%v, %v), want the page just put", got, ok)
	}
	if c.len() != 1 {
		t.Errorf("len() = %d, want 1", c.len())
	}

	c.invalidate(1)
	if _, ok := c.get(1); ok {
		t.Error("get after invalidate reported a hit")
	}

	c.put(2, &Page{})
	c.put(3, &Page{})
	c.clear()
	if c.len() != 0 {
		t.Errorf("len() after clear = %d, want 0", c.len())
	}
}

func TestPageCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newPageCache(2)
	c.put(1, &Page{})
	c.put(2, &Page{})
	c.put(3, &Page{})
	if _, ok := c.get(1); ok {
		t.Error("expected page 1 to have been evicted once capacity 2 was exceeded")
	}
	if _, ok := c.get(3); !ok {
		t.Error("expected the most recently added page to remain cached")
	}
}
