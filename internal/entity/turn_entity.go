package entity

import (
	"errors"
	"time"
)

// ErrMalformedTurn is returned when a stored turn cannot be decoded into the
// passage schema. Such rows are never coerced into an empty passage list.
var ErrMalformedTurn = errors.New("malformed turn record")

// Turn is one committed exchange. Turns are immutable once stored and are
// ordered within a session by (CreatedAt, Sequence).
type Turn struct {
	Id                string
	SessionId         string
	Sequence          int64
	UserMessage       string
	Response          string
	ReferencePassages []Passage
	CreatedAt         time.Time
}

// Passage is a retrieved text unit plus whatever the index knows about its source.
type Passage struct {
	Content        string         `json:"content"`
	SourceMetadata map[string]any `json:"source_metadata"`
}

func (p Passage) Clone() Passage {
	return Passage{
		Content:        p.Content,
		SourceMetadata: cloneMap(p.SourceMetadata),
	}
}

func ClonePassages(passages []Passage) []Passage {
	if passages == nil {
		return []Passage{}
	}
	out := make([]Passage, len(passages))
	for i, p := range passages {
		out[i] = p.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
