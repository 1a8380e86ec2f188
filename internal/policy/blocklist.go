package policy

import (
	"strings"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// ParseBlockList parses multi-line free-form text, one entry per line.
// Lines that yield no identifier are skipped; duplicates collapse to the
// first occurrence.
func ParseBlockList(text string) domain.BlockList {
	return defaultRegistry.ParseBlockList(text)
}

// ParseBlockList is ParseBlockList using r's strategy chain.
func (r *Registry) ParseBlockList(text string) domain.BlockList {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	return r.MergeBlockList(domain.BlockList{}, lines...)
}

// MergeBlockList appends normalized entries that are not already listed.
func (r *Registry) MergeBlockList(list domain.BlockList, entries ...string) domain.BlockList {
	out := make(domain.BlockList, 0, len(list)+len(entries))
	seen := make(map[string]struct{}, len(list)+len(entries))
	add := func(id string) {
		if id == domain.IdentifierPrefix {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range list {
		add(id)
	}
	for _, e := range entries {
		if id, ok := r.Normalize(e); ok {
			add(id)
		}
	}
	return out
}

// MergeBlockList appends entries to list using the default chain.
func MergeBlockList(list domain.BlockList, entries ...string) domain.BlockList {
	return defaultRegistry.MergeBlockList(list, entries...)
}

// RemoveFromBlockList drops every listed identifier matching one of the entries.
// Entries are normalized first, so "AskReddit" removes "/r/askreddit".
func RemoveFromBlockList(list domain.BlockList, entries ...string) domain.BlockList {
	drop := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if id, ok := Normalize(e); ok {
			drop[id] = struct{}{}
		}
	}

	out := make(domain.BlockList, 0, len(list))
	for _, id := range list {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// FormatBlockList renders the list one identifier per line, the way the
// editor shows it.
func FormatBlockList(list domain.BlockList) string {
	return strings.Join(list, "\n")
}
