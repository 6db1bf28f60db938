package model

import (
	"fmt"
	"strings"
)

// Log is an insertion-ordered mapping of metric names to scalar values.
// A key keeps its position when its value is overwritten.
type Log struct {
	keys   []string
	values map[string]float64
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{values: make(map[string]float64)}
}

// Set records v under key.
func (l *Log) Set(key string, v float64) {
	if _, ok := l.values[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.values[key] = v
}

// Get returns the value recorded under key.
func (l *Log) Get(key string) (float64, bool) {
	v, ok := l.values[key]
	return v, ok
}

// Keys returns the metric names in insertion order.
func (l *Log) Keys() []string {
	return append([]string(nil), l.keys...)
}

// Len returns the number of metrics.
func (l *Log) Len() int {
	return len(l.keys)
}

// KeyVals flattens the log into alternating names and values for structured
// logging.
func (l *Log) KeyVals() []any {
	kv := make([]any, 0, 2*len(l.keys))
	for _, k := range l.keys {
		kv = append(kv, k, l.values[k])
	}
	return kv
}

func (l *Log) String() string {
	var b strings.Builder
	for i, k := range l.keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s: %.4e", k, l.values[k])
	}
	return b.String()
}
