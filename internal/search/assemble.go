package search

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/paperdex/paperdex/internal/engine"
	"github.com/paperdex/paperdex/internal/index"
)

// excerptLimit bounds the fallback excerpt for a page that matched without a
// computed highlight fragment.
const excerptLimit = 100

var markedTerm = regexp.MustCompile(`<mark>(.*?)</mark>`)

// Assemble converts raw engine hits into client-facing results. It is total:
// malformed hits degrade to partial results, never to an error. Page hits are
// grouped under their parent document; the combined score is the parent score
// plus the sum of its page scores. Equal scores order by creation time
// descending, then id ascending.
func Assemble(hits []*engine.Hit, maxPageLocations int) []Result {
	if maxPageLocations <= 0 {
		maxPageLocations = 5
	}

	type group struct {
		parent *engine.Hit
		pages  []*engine.Hit
	}
	groups := map[string]*group{}
	order := []string{}
	for _, hit := range hits {
		g, ok := groups[hit.DocID]
		if !ok {
			g = &group{}
			groups[hit.DocID] = g
			order = append(order, hit.DocID)
		}
		if hit.Kind == index.KindPage {
			g.pages = append(g.pages, hit)
		} else {
			g.parent = hit
		}
	}

	results := make([]Result, 0, len(groups))
	for _, docID := range order {
		g := groups[docID]
		display := g.parent
		if display == nil {
			// Page-only match: the page entry carries the parent's
			// display fields stored alongside it.
			display = g.pages[0]
		}

		score := 0.0
		if g.parent != nil {
			score = g.parent.Score
		}
		for _, p := range g.pages {
			score += p.Score
		}

		createdAt := display.FieldString("createdAt")
		res := Result{
			ID:         docID,
			FileName:   display.FieldString("name"),
			FolderName: display.FieldString("folderName"),
			DocType:    display.FieldString("docType"),
			CreatedAt:  createdAt,
			score:      score,
			createdAt:  parseCreatedAt(createdAt),
		}
		if res.FolderName == "" {
			res.FolderName = index.FolderNameRoot
		}

		res.Locations = append(res.Locations, contentLocations(g.pages, maxPageLocations)...)
		if g.parent != nil {
			res.Locations = append(res.Locations, metadataLocations(g.parent)...)
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].createdAt != results[j].createdAt {
			return results[i].createdAt > results[j].createdAt
		}
		return results[i].ID < results[j].ID
	})
	return results
}

// contentLocations emits one location per page highlight fragment, oldest
// page first, capped at limit per document. A page that matched without a
// fragment still contributes a plain excerpt so it is never dropped.
func contentLocations(pages []*engine.Hit, limit int) []Location {
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})

	locations := []Location{}
	for _, page := range pages {
		if len(locations) >= limit {
			break
		}
		fragments := markedOnly(page.Fragments["text"])
		if len(fragments) == 0 {
			locations = append(locations, Location{
				Type:        LocationContent,
				Description: fmt.Sprintf("Found on page %d", page.PageNumber),
				Snippet:     excerpt(page.FieldString("text")),
			})
			continue
		}
		for _, fragment := range fragments {
			if len(locations) >= limit {
				break
			}
			locations = append(locations, Location{
				Type:        LocationContent,
				Description: fmt.Sprintf("Found on page %d", page.PageNumber),
				Snippet:     fragment,
			})
		}
	}
	return locations
}

// metadataLocations emits one location per highlighted non-page field, first
// marked fragment only. The engine returns a fragment for every requested
// field on a matching document, marked or not, so a fragment counts as a
// match only when it carries a highlighted term. For the catch-all
// data/metadata surfaces the original dotted key is recovered by matching the
// highlighted term back against the stored flattened fields.
func metadataLocations(parent *engine.Hit) []Location {
	locations := []Location{}
	if fragment, ok := firstMarked(parent.Fragments["name"]); ok {
		locations = append(locations, Location{
			Type:        LocationMetadata,
			Description: "Found in file name",
			Snippet:     fragment,
		})
	}
	if fragment, ok := firstMarked(parent.Fragments["dataText"]); ok {
		locations = append(locations, Location{
			Type:        LocationMetadata,
			Description: attributeField(parent, "flatData.", fragment, "document data"),
			Snippet:     fragment,
		})
	}
	if fragment, ok := firstMarked(parent.Fragments["metaText"]); ok {
		locations = append(locations, Location{
			Type:        LocationMetadata,
			Description: attributeField(parent, "flatMeta.", fragment, "metadata"),
			Snippet:     fragment,
		})
	}
	return locations
}

// markedOnly filters fragments down to those containing a highlighted term.
func markedOnly(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if markedTerm.MatchString(f) {
			out = append(out, f)
		}
	}
	return out
}

func firstMarked(fragments []string) (string, bool) {
	for _, f := range fragments {
		if markedTerm.MatchString(f) {
			return f, true
		}
	}
	return "", false
}

// attributeField recovers which flattened field a catch-all fragment came
// from by matching its highlighted terms against the stored dotted-path
// fields. Falls back to a generic surface name when no field matches.
func attributeField(hit *engine.Hit, prefix, fragment, fallback string) string {
	terms := markedTerm.FindAllStringSubmatch(fragment, -1)
	if len(terms) == 0 {
		return "Found in " + fallback
	}

	keys := make([]string, 0, len(hit.Fields))
	for key := range hit.Fields {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := hit.Fields[key].(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(value)
		for _, term := range terms {
			if strings.Contains(lower, strings.ToLower(term[1])) {
				return "Found in " + strings.TrimPrefix(key, prefix)
			}
		}
	}
	return "Found in " + fallback
}

func excerpt(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= excerptLimit {
		return trimmed
	}
	return index.Truncate(trimmed, excerptLimit) + "..."
}

func parseCreatedAt(value string) int64 {
	if value == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixNano()
		}
	}
	return 0
}
