/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"sort"
	"sync"
)

// Cache remembers resolved Records for the life of the process. Failed
// resolutions are not stored, so a table created later becomes visible on
// the next call. Concurrent first lookups of one name may both resolve; the
// second store overwrites an identical Record.
type Cache struct {
	resolver Resolver
	mu       sync.RWMutex
	records  map[string]*Record
}

func NewCache(resolver Resolver) *Cache {
	return &Cache{resolver: resolver, records: make(map[string]*Record)}
}

// Get returns the cached Record of table, resolving it on a miss.
func (c *Cache) Get(ctx context.Context, table string) (*Record, error) {
	c.mu.RLock()
	rec, ok := c.records[table]
	c.mu.RUnlock()
	if ok {
		return rec, nil
	}

	rec, err := c.resolver.Resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.records[table] = rec
	c.mu.Unlock()
	return rec, nil
}

// Len is the number of cached tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Tables lists the cached table names in sorted order.
func (c *Cache) Tables() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.records))
	for name := range c.records {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}
