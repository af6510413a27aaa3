package helper

import "sync"

// Memo is a small guarded map from a correlation key to a set of reported
// values, generalizing the teacher's peer.received *Memo (used there to
// collect per-partition timestamps during a gather round) to any
// multi-reporter collection. No package in this module uses it.
type Memo struct {
	mutex sync.Mutex
	data  map[string]map[string]uint64
}

// NewMemo creates an empty Memo.
func NewMemo() *Memo {
	return &Memo{data: make(map[string]map[string]uint64)}
}

// Insert records that reporter contributed value for key.
func (m *Memo) Insert(key, reporter string, value uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bucket, ok := m.data[key]
	if !ok {
		bucket = make(map[string]uint64)
		m.data[key] = bucket
	}
	bucket[reporter] = value
}

// Read returns every value reported so far for key.
func (m *Memo) Read(key string) []uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bucket := m.data[key]
	values := make([]uint64, 0, len(bucket))
	for _, v := range bucket {
		values = append(values, v)
	}
	return values
}

// Count reports how many distinct reporters have contributed for key.
func (m *Memo) Count(key string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.data[key])
}

// Remove discards every value collected for key.
func (m *Memo) Remove(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.data, key)
}
