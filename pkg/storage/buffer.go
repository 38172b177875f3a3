package storage

import "errors"

// Change is one staged write of a transaction
type Change struct {
	Key     string
	Value   []byte
	Deleted bool
}

// Buffer stages the writes of an Update on top of a read function.
// Backends commit Changes() once fn has returned without error.
type Buffer struct {
	read   func(key string) ([]byte, error)
	staged map[string]Change
	order  []string
}

// NewBuffer returns a Tx reading through read
func NewBuffer(read func(key string) ([]byte, error)) *Buffer {
	return &Buffer{
		read:   read,
		staged: make(map[string]Change),
	}
}

func (b *Buffer) Get(key string) ([]byte, error) {
	if ch, ok := b.staged[key]; ok {
		if ch.Deleted {
			return nil, ErrNotFound
		}
		return clone(ch.Value), nil
	}
	v, err := b.read(key)
	if err != nil {
		return nil, err
	}
	return clone(v), nil
}

func (b *Buffer) Put(key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	b.stage(Change{Key: key, Value: clone(value)})
	return nil
}

func (b *Buffer) Delete(key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	b.stage(Change{Key: key, Deleted: true})
	return nil
}

func (b *Buffer) stage(ch Change) {
	if _, ok := b.staged[ch.Key]; !ok {
		b.order = append(b.order, ch.Key)
	}
	b.staged[ch.Key] = ch
}

// Changes returns the staged writes in first-write order, one per key
func (b *Buffer) Changes() []Change {
	out := make([]Change, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.staged[k])
	}
	return out
}

func clone(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
