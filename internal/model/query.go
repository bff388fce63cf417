package model

import (
	"encoding/json"
	"fmt"
)

// QueryValue is one parsed query parameter. It is a single string, a bare flag
// (a key without "=", which reads as true) or, once a key repeats, a list.
type QueryValue struct {
	items []queryItem
	list  bool
}

type queryItem struct {
	value string
	flag  bool
}

// QueryString returns a single string value.
func QueryString(v string) QueryValue {
	return QueryValue{items: []queryItem{{value: v}}}
}

// QueryFlag returns a bare-key value.
func QueryFlag() QueryValue {
	return QueryValue{items: []queryItem{{flag: true}}}
}

// QueryList returns a list value of plain strings.
func QueryList(values ...string) QueryValue {
	q := QueryValue{list: true}
	for _, v := range values {
		q.items = append(q.items, queryItem{value: v})
	}
	return q
}

// Append adds another occurrence of the same key, promoting the value to a list.
func (q QueryValue) Append(other QueryValue) QueryValue {
	out := q.Clone()
	out.list = true
	out.items = append(out.items, other.items...)
	return out
}

// IsList reports whether the key occurred more than once.
func (q QueryValue) IsList() bool { return q.list }

// IsFlag reports whether the value is a single bare key.
func (q QueryValue) IsFlag() bool {
	return !q.list && len(q.items) == 1 && q.items[0].flag
}

// String returns the first value; bare keys read as "true".
func (q QueryValue) String() string {
	if len(q.items) == 0 {
		return ""
	}
	return q.items[0].text()
}

// Strings returns every value in order; bare keys read as "true".
func (q QueryValue) Strings() []string {
	out := make([]string, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.text())
	}
	return out
}

// Clone returns an independent copy.
func (q QueryValue) Clone() QueryValue {
	out := QueryValue{list: q.list}
	if q.items != nil {
		out.items = append([]queryItem(nil), q.items...)
	}
	return out
}

func (it queryItem) text() string {
	if it.flag {
		return "true"
	}
	return it.value
}

func (it queryItem) jsonValue() any {
	if it.flag {
		return true
	}
	return it.value
}

// MarshalJSON encodes the value as "v", true or ["a", "b"].
func (q QueryValue) MarshalJSON() ([]byte, error) {
	if !q.list {
		if len(q.items) == 0 {
			return []byte("null"), nil
		}
		return json.Marshal(q.items[0].jsonValue())
	}
	vals := make([]any, 0, len(q.items))
	for _, it := range q.items {
		vals = append(vals, it.jsonValue())
	}
	return json.Marshal(vals)
}

// UnmarshalJSON accepts the forms MarshalJSON produces.
func (q *QueryValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*q = QueryValue{}
		return nil
	}
	if vals, ok := raw.([]any); ok {
		out := QueryValue{list: true}
		for _, v := range vals {
			it, err := itemFromJSON(v)
			if err != nil {
				return err
			}
			out.items = append(out.items, it)
		}
		*q = out
		return nil
	}
	it, err := itemFromJSON(raw)
	if err != nil {
		return err
	}
	*q = QueryValue{items: []queryItem{it}}
	return nil
}

func itemFromJSON(v any) (queryItem, error) {
	switch v := v.(type) {
	case string:
		return queryItem{value: v}, nil
	case bool:
		if v {
			return queryItem{flag: true}, nil
		}
		return queryItem{value: "false"}, nil
	}
	return queryItem{}, fmt.Errorf("query value: unexpected JSON %T", v)
}
