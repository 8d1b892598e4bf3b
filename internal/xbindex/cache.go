package xbindex

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheSize bounds how many decoded pages an Engine keeps resident.
// A root-to-leaf descent on a reasonably balanced tree touches a handful of
// pages per lookup; this comfortably covers repeated lookups without
// re-reading hot branch pages from disk every time.
const defaultCacheSize = 256

// pageCache is a small wrapper over an LRU cache of decoded pages, keyed by
// page index (block number, counting the header as page 0 the way file
// offsets do: byte offset = index * PageSize).
type pageCache struct {
	pages *lru.Cache[int32, *Page]
}

func newPageCache(size int) *pageCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, _ := lru.New[int32, *Page](size)
	return &pageCache{pages: c}
}

func (c *pageCache) get(index int32) (*Page, bool) {
	return c.pages.Get(index)
}

func (c *pageCache) put(index int32, p *Page) {
	c.pages.Add(index, p)
}

func (c *pageCache) invalidate(index int32) {
	c.pages.Remove(index)
}

func (c *pageCache) clear() {
	c.pages.Purge()
}

func (c *pageCache) len() int {
	return c.pages.Len()
}
