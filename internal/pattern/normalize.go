package pattern

import "strings"

// Slugify lowers a concern label to a stable file-partition key:
// lowercase, alphanumeric runs joined by single hyphens. Only exact slug
// collisions merge concerns; near-synonyms stay separate.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "general"
	}
	return slug
}

// dedupeKey treats patterns as duplicates when the case-folded,
// whitespace-collapsed source construct and the location hint match.
func dedupeKey(p MigrationPattern) string {
	construct := strings.ToLower(strings.Join(strings.Fields(p.SourceConstruct), " "))
	return construct + "|" + string(p.LocationHint)
}

// Normalize merges the per-chunk (and per-document) pattern lists into a
// single deduplicated list. The survivor of a duplicate group is the
// record with the longer non-empty ExampleBefore; source references are
// unioned preserving first-seen order. Concern labels are slugified.
// Output order follows first occurrence, which is deterministic because
// callers pass patterns sorted by (chunk index, ordinal).
func Normalize(patterns []MigrationPattern) []MigrationPattern {
	slot := map[string]int{}
	var out []MigrationPattern

	for _, p := range patterns {
		p.Concern = Slugify(p.Concern)
		key := dedupeKey(p)

		i, seen := slot[key]
		if !seen {
			slot[key] = len(out)
			out = append(out, p)
			continue
		}

		kept := out[i]
		refs := unionLinks(kept.SourceReferences, p.SourceReferences)
		if len(strings.TrimSpace(p.ExampleBefore)) > len(strings.TrimSpace(kept.ExampleBefore)) {
			// The newcomer is more specific; it takes over the slot but
			// keeps the original position and provenance ordering.
			p.ChunkIndex = kept.ChunkIndex
			p.Ordinal = kept.Ordinal
			kept = p
		}
		kept.SourceReferences = refs
		out[i] = kept
	}
	return out
}

func unionLinks(a, b []Link) []Link {
	seen := map[string]bool{}
	var out []Link
	for _, l := range append(append([]Link{}, a...), b...) {
		if l.URL == "" || seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}
