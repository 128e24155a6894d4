package normalize

import (
	"sort"

	"NewsSignals/internal/domain"
)

// Stock is the inverse view of the index for a single stock code.
type Stock struct {
	Code         string
	DisplayName  string
	Canonical    []string
	Aliases      []string
	Subsidiaries []string
}

// Keywords returns every text that resolves to the stock, display name first.
func (s Stock) Keywords() []string {
	size := 1 + len(s.Canonical) + len(s.Aliases) + len(s.Subsidiaries)
	seen := make(map[string]struct{}, size)
	out := make([]string, 0, size)
	add := func(values ...string) {
		for _, v := range values {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	add(s.DisplayName)
	add(s.Canonical...)
	add(s.Aliases...)
	add(s.Subsidiaries...)
	return out
}

type mapping struct {
	code string
	kind domain.EntryKind
}

// Index resolves mention text to stock codes. It is immutable once built and
// safe for concurrent readers.
type Index struct {
	lookup map[string]mapping
	stocks map[string]*Stock
}

// Build creates an index with canonical > alias > subsidiary precedence.
// When the same text maps to two stocks within one tier the lexicographically
// smaller stock code wins.
func Build(entries []domain.NormalizationEntry) *Index {
	idx := &Index{
		lookup: make(map[string]mapping, len(entries)),
		stocks: make(map[string]*Stock),
	}

	names := make(map[string]string)
	for _, e := range entries {
		if e.Text == "" || e.StockCode == "" {
			continue
		}
		if e.StockName != "" {
			if cur, ok := names[e.StockCode]; !ok || e.StockName < cur {
				names[e.StockCode] = e.StockName
			}
		}

		cur, ok := idx.lookup[e.Text]
		switch {
		case !ok:
		case e.Kind < cur.kind:
		case e.Kind == cur.kind && e.StockCode < cur.code:
		default:
			continue
		}
		idx.lookup[e.Text] = mapping{code: e.StockCode, kind: e.Kind}
	}

	for text, m := range idx.lookup {
		st := idx.stocks[m.code]
		if st == nil {
			st = &Stock{Code: m.code}
			idx.stocks[m.code] = st
		}
		switch m.kind {
		case domain.KindCanonical:
			st.Canonical = append(st.Canonical, text)
		case domain.KindAlias:
			st.Aliases = append(st.Aliases, text)
		case domain.KindSubsidiary:
			st.Subsidiaries = append(st.Subsidiaries, text)
		}
	}

	for code, st := range idx.stocks {
		sort.Strings(st.Canonical)
		sort.Strings(st.Aliases)
		sort.Strings(st.Subsidiaries)
		switch {
		case len(st.Canonical) > 0:
			st.DisplayName = st.Canonical[0]
		case names[code] != "":
			st.DisplayName = names[code]
		default:
			st.DisplayName = code
		}
	}

	return idx
}

// Resolve returns the stock code for text. A miss is not an error.
func (i *Index) Resolve(text string) (string, bool) {
	if i == nil {
		return "", false
	}
	m, ok := i.lookup[text]
	return m.code, ok
}

// Stock returns the inverse entry for code.
func (i *Index) Stock(code string) (Stock, bool) {
	if i == nil {
		return Stock{}, false
	}
	st, ok := i.stocks[code]
	if !ok {
		return Stock{}, false
	}
	return *st, true
}

// Name returns the display name for code, or the empty string.
func (i *Index) Name(code string) string {
	st, ok := i.Stock(code)
	if !ok {
		return ""
	}
	return st.DisplayName
}

// Keywords returns the full search-keyword set for code.
func (i *Index) Keywords(code string) []string {
	st, ok := i.Stock(code)
	if !ok {
		return nil
	}
	return st.Keywords()
}

// Len reports how many texts the index resolves.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.lookup)
}

// StockCount reports how many distinct stocks are reachable.
func (i *Index) StockCount() int {
	if i == nil {
		return 0
	}
	return len(i.stocks)
}
