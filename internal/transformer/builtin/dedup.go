package builtin

import (
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"gcload/internal/records"
	"gcload/internal/schema"
)

// Dedup drops rows whose key fields repeat an earlier row; the first
// occurrence wins and input order is kept. With no Keys the whole row is the
// key. Only the xxh3 hash of each kept key is stored, with the kept rows
// sharing that hash; a hash match is confirmed by rebuilding the kept row's
// key, so a collision never drops a distinct row.
//
// Dropped is set by Apply to the number of rows removed.
type Dedup struct {
	Keys    []string
	Dropped int

	hash func(string) uint64
}

// Apply returns the first occurrence of every distinct key.
func (d *Dedup) Apply(in []records.Row) ([]records.Row, error) {
	d.Dropped = 0
	hash := d.hash
	if hash == nil {
		hash = xxh3.HashString
	}
	seen := make(map[uint64][]int, len(in))
	out := make([]records.Row, 0, len(in))
	for _, r := range in {
		key := d.keyOf(r)
		h := hash(key)
		if d.contains(out, seen[h], key) {
			d.Dropped++
			continue
		}
		seen[h] = append(seen[h], len(out))
		out = append(out, r)
	}
	return out, nil
}

// contains reports whether any kept row at idx has key.
func (d *Dedup) contains(kept []records.Row, idx []int, key string) bool {
	for _, i := range idx {
		if d.keyOf(kept[i]) == key {
			return true
		}
	}
	return false
}

func (d *Dedup) keyOf(r records.Row) string {
	keys := d.Keys
	if len(keys) == 0 {
		keys = make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if len(d.Keys) == 0 {
			b.WriteString(k)
			b.WriteByte('=')
		}
		v, ok := r[k]
		if !ok || v == nil {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(schema.FormatValue(v))
	}
	return b.String()
}
