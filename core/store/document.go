package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/relabs-tech/docrest/core/pointers"
)

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]interface{}(d)).(map[string]interface{})
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]interface{}(t)).(map[string]interface{}))
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	case []Document:
		l := make([]interface{}, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	}
	return v
}

// Project returns a copy of the document restricted to the projection. An empty
// projection returns the document unchanged.
func (d Document) Project(projection Projection) Document {
	if len(projection) == 0 || d == nil {
		return d
	}
	projected := make(Document, len(projection))
	for _, field := range projection {
		if v, ok := d[field]; ok {
			projected[field] = v
		}
	}
	return projected
}

// Merge copies all properties of update onto the document, except the identifier
func (d Document) Merge(update Document) {
	for k, v := range update {
		if k == IDField {
			continue
		}
		d[k] = v
	}
}

// AsDocument converts a value read from a document property into a Document
func AsDocument(v interface{}) (Document, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]interface{}:
		return Document(t), true
	}
	return nil, false
}

// SubList returns the embedded documents stored under field. Entries which are not
// documents are skipped. The returned documents share their storage with d, so
// modifications are visible in d.
func (d Document) SubList(field string) []Document {
	list := []Document{}
	raw, _ := d[field].([]interface{})
	for _, e := range raw {
		if sub, ok := AsDocument(e); ok {
			list = append(list, sub)
		}
	}
	return list
}

// FindSub returns the embedded document with the given identifier stored under field
func (d Document) FindSub(field, id string) (Document, bool) {
	for _, sub := range d.SubList(field) {
		if sub.ID() == id {
			return sub, true
		}
	}
	return nil, false
}

// AppendSub appends an embedded document to the list stored under field
func (d Document) AppendSub(field string, sub Document) {
	raw, _ := d[field].([]interface{})
	d[field] = append(raw, map[string]interface{}(sub))
}

// RemoveSub removes the embedded document with the given identifier from the list stored
// under field. It returns false if there was no such document.
func (d Document) RemoveSub(field, id string) bool {
	raw, _ := d[field].([]interface{})
	for i, e := range raw {
		if sub, ok := AsDocument(e); ok && sub.ID() == id {
			d[field] = append(raw[:i:i], raw[i+1:]...)
			return true
		}
	}
	return false
}

// Compare orders two property values. Nil sorts first, numbers by value, times
// chronologically, everything else by string representation.
func Compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

// SortDocuments sorts docs in place. The sort is stable.
func SortDocuments(docs []Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			c := Compare(docs[i][f.Field], docs[j][f.Field])
			if c == 0 {
				continue
			}
			if f.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Apply evaluates filter and opts on docs in memory. It returns the page of matching
// documents and the number of matching documents before paging.
func Apply(docs []Document, filter Filter, opts FindOptions) ([]Document, int) {
	matched := []Document{}
	for _, doc := range docs {
		if Matches(filter, doc) {
			matched = append(matched, doc)
		}
	}
	total := len(matched)
	SortDocuments(matched, opts.Sort)

	start := 0
	if skip := pointers.SafeInt64(opts.Skip); skip > 0 {
		start = int(skip)
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if limit := pointers.SafeInt64(opts.Limit); limit > 0 && start+int(limit) < end {
		end = start + int(limit)
	}
	page := matched[start:end]
	if len(opts.Projection) > 0 {
		projected := make([]Document, len(page))
		for i, doc := range page {
			projected[i] = doc.Project(opts.Projection)
		}
		page = projected
	}
	return page, total
}
