package requirements

import (
	"fmt"

	"github.com/google/uuid"
)

// MergePolicy decides how an extracted document is combined with the store.
type MergePolicy string

const (
	// MergeAdditive appends new items and never drops existing ones.
	MergeAdditive MergePolicy = "additive"
	// MergeReplace makes the extracted document the new store wholesale.
	MergeReplace MergePolicy = "replace"
)

// ParseMergePolicy maps a config value to a policy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(s) {
	case MergeAdditive, "":
		return MergeAdditive, nil
	case MergeReplace:
		return MergeReplace, nil
	}
	return "", fmt.Errorf("unknown merge policy %q (want %q or %q)", s, MergeAdditive, MergeReplace)
}

// MergeResult describes the outcome of Merge.
type MergeResult struct {
	Document    Document
	Added       int
	Skipped     int
	TotalBefore int
	TotalAfter  int
}

// LossSuspected reports whether the merge shrank the store below half of its
// previous size. Only the replace policy can trigger it.
func (r MergeResult) LossSuspected() bool {
	return r.TotalAfter*2 < r.TotalBefore
}

// Merge combines the current store with an extracted document. Neither input
// is modified.
func Merge(current, incoming Document, policy MergePolicy) MergeResult {
	res := MergeResult{TotalBefore: current.Total()}

	if policy == MergeReplace {
		var out Document
		for _, c := range Categories {
			seen := make(map[string]struct{})
			items := make([]Item, 0, len(incoming.Items(c)))
			for _, it := range incoming.Items(c) {
				if _, dup := seen[it.ID]; it.ID == "" || dup {
					it.ID = uuid.NewString()
				}
				seen[it.ID] = struct{}{}
				items = append(items, it)
			}
			out.set(c, items)
			res.Added += len(items)
		}
		res.Document = out
		res.TotalAfter = out.Total()
		return res
	}

	out := current.Clone()
	for _, c := range Categories {
		existing := out.Items(c)
		byID := make(map[string]Item, len(existing))
		byText := make(map[string]struct{}, len(existing))
		for _, it := range existing {
			byID[it.ID] = it
			byText[textKey(it)] = struct{}{}
		}

		for _, it := range incoming.Items(c) {
			if prev, ok := byID[it.ID]; ok && prev == it {
				res.Skipped++
				continue
			}
			if _, ok := byText[textKey(it)]; ok {
				res.Skipped++
				continue
			}
			if _, taken := byID[it.ID]; it.ID == "" || taken {
				it.ID = uuid.NewString()
			}
			byID[it.ID] = it
			byText[textKey(it)] = struct{}{}
			existing = append(existing, it)
			res.Added++
		}
		out.set(c, existing)
	}
	res.Document = out
	res.TotalAfter = out.Total()
	return res
}

func textKey(it Item) string {
	return it.Title + "\x00" + it.Description
}

// Delete removes the item with the given id from category c. The second
// result is false when no such item exists; the returned document is then
// equal to d.
func Delete(d Document, c Category, id string) (Document, bool) {
	out := d.Clone()
	items := out.Items(c)
	for i, it := range items {
		if it.ID == id {
			out.set(c, append(items[:i:i], items[i+1:]...))
			return out, true
		}
	}
	return out, false
}

// Clear returns an empty store.
func Clear() Document {
	return Document{}.Clone()
}
