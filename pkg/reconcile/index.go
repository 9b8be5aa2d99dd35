package reconcile

import (
	"github.com/TFMV/recon/pkg/core"
)

// KeyIndex maps primary key tuples of one dataset to their records.
type KeyIndex struct {
	role    Role
	keys    []Key
	encoded []string
	rows    map[string]int
	records []core.Record
}

// BuildIndex indexes a dataset by its primary key columns. It fails if a key column
// is missing from the schema, a key value is null, or two records share a key.
func BuildIndex(ds *core.Dataset, primaryKeys []string, role Role) (*KeyIndex, error) {
	if err := checkKeyColumns(ds, role, primaryKeys); err != nil {
		return nil, err
	}

	idx := &KeyIndex{
		role:    role,
		keys:    make([]Key, 0, len(ds.Records)),
		encoded: make([]string, 0, len(ds.Records)),
		rows:    make(map[string]int, len(ds.Records)),
		records: ds.Records,
	}

	for row, rec := range ds.Records {
		key := make(Key, len(primaryKeys))
		for i, col := range primaryKeys {
			v := core.NormalizeValue(rec[col])
			if v == nil {
				return nil, &NullKeyError{Column: col, Role: role, Row: row}
			}
			key[i] = v
		}

		enc := encodeKey(key)
		if first, ok := idx.rows[enc]; ok {
			return nil, &DuplicateKeyError{Key: key, Role: role, FirstRow: first, SecondRow: row}
		}
		idx.rows[enc] = row
		idx.keys = append(idx.keys, key)
		idx.encoded = append(idx.encoded, enc)
	}

	return idx, nil
}

// Len returns the number of indexed keys.
func (x *KeyIndex) Len() int {
	return len(x.keys)
}

// Role returns the side this index was built for.
func (x *KeyIndex) Role() Role {
	return x.role
}

// Keys returns the indexed keys in first-seen order.
func (x *KeyIndex) Keys() []Key {
	out := make([]Key, len(x.keys))
	for i, k := range x.keys {
		out[i] = k.clone()
	}
	return out
}

// Lookup returns the record stored under key.
func (x *KeyIndex) Lookup(key Key) (core.Record, bool) {
	row, ok := x.rows[encodeKey(key)]
	if !ok {
		return nil, false
	}
	return x.records[row], true
}

func (x *KeyIndex) lookupEncoded(enc string) (core.Record, bool) {
	row, ok := x.rows[enc]
	if !ok {
		return nil, false
	}
	return x.records[row], true
}
