// Package gallery turns the aggregated media column of a product query into an ordered gallery.
//
// The store aggregates each media row as a JSON object and joins them with ","
// (group_concat / string_agg). URLs routinely contain "," and "},{" so the input is never
// split on delimiters: a scanner walks each object tracking string literals and brace depth,
// and each object is decoded on its own. When an item's quotes or braces are broken the
// walker resumes at the next ",{" boundary, so only that item is lost.
package gallery

import (
	"fmt"
	"sort"
	"strings"

	"vitrine/metrics"
	"vitrine/models"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Anomaly describes a descriptor that was dropped.
type Anomaly struct {
	Offset int
	Raw    string
	Reason string
}

func (a Anomaly) Error() string {
	return fmt.Sprintf("gallery item at offset %d dropped: %s", a.Offset, a.Reason)
}

type descriptor struct {
	Kind    *string `json:"kind"`
	URL     *string `json:"url"`
	Ordinal *int    `json:"ordinal"`
}

// Assemble decodes raw into media items ordered by ordinal. Descriptors that fail to decode are
// logged and skipped. The result is never nil.
func Assemble(raw string) []models.MediaItem {
	items, anomalies := Parse(raw)
	for _, a := range anomalies {
		metrics.GalleryAnomaliesTotal.Inc()
		log.Warn().
			Int("offset", a.Offset).
			Str("reason", a.Reason).
			Str("raw", truncate(a.Raw, 200)).
			Msg("gallery: dropping unparseable media item")
	}
	return items
}

// Parse is Assemble without the logging side effects.
func Parse(raw string) ([]models.MediaItem, []Anomaly) {
	items := []models.MediaItem{}
	var anomalies []Anomaly
	drop := func(offset int, text, reason string) {
		anomalies = append(anomalies, Anomaly{Offset: offset, Raw: text, Reason: reason})
	}

	pos := 0
	for pos < len(raw) {
		rel := strings.IndexByte(raw[pos:], '{')
		if rel < 0 {
			if text := strings.Trim(raw[pos:], separators); text != "" {
				drop(pos, text, "stray text")
			}
			break
		}
		start := pos + rel
		if text := strings.Trim(raw[pos:start], separators); text != "" {
			drop(pos, text, "stray text")
		}

		end, closed := objectEnd(raw, start)
		if closed && json.Valid([]byte(raw[start:end])) {
			// objeto bem formado: mesmo se inválido, a fronteira do próximo item é confiável
			item, err := decode(raw[start:end])
			if err != nil {
				drop(start, raw[start:end], err.Error())
			} else {
				items = append(items, item)
			}
			pos = end
			continue
		}

		// aspas ou chaves corrompidas: o estado do scanner não vale mais, recomeça no próximo ",{"
		next := nextCandidate(raw, start+1)
		if next < 0 {
			drop(start, raw[start:], "unterminated or malformed object")
			break
		}
		drop(start, strings.TrimRight(raw[start:next], separators), "malformed object")
		pos = next
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Ordinal < items[j].Ordinal })
	return items, anomalies
}

func decode(text string) (models.MediaItem, error) {
	var d descriptor
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return models.MediaItem{}, err
	}
	if d.Kind == nil || d.URL == nil {
		return models.MediaItem{}, fmt.Errorf("missing kind or url")
	}
	item := models.MediaItem{Kind: *d.Kind, URL: *d.URL}
	if d.Ordinal != nil {
		item.Ordinal = *d.Ordinal
	}
	if missing := item.MissingFields(); missing != "" {
		return models.MediaItem{}, fmt.Errorf("invalid %s", missing)
	}
	return item, nil
}

const separators = ", \t\r\n"

// objectEnd walks the object opening at raw[start], tracking string literals and brace depth,
// and returns the offset just past its closing brace.
func objectEnd(raw string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false

	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return len(raw), false
}

// nextCandidate returns the offset of the first "{" at or after from whose previous
// non-blank byte is the joining ",", or -1.
func nextCandidate(raw string, from int) int {
	for i := from; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		j := i - 1
		for j >= 0 && (raw[j] == ' ' || raw[j] == '\t' || raw[j] == '\r' || raw[j] == '\n') {
			j--
		}
		if j >= 0 && raw[j] == ',' {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
