package salesb2b

import (
	"sort"
	"time"

	"github.com/vk/factbuild/internal/table"
)

// Default values applied when a lookup has no match for a line. The entry
// cost default of 999 is intentionally loud so unmapped products stand out
// in margin reports.
const (
	defaultCODPP = "XXX"
	defaultG1    = "V"
	defaultECU   = 999.0
)

// costEntry is one entry-cost observation for a parent product.
type costEntry struct {
	date time.Time
	cost float64
}

// lookups holds the pre-indexed lookup tables, all keys uppercased.
type lookups struct {
	shipmentClients map[string]bool        // T_Remessas: NOMEF set
	productParent   map[string]string      // T_ProdF: CODPF → CODPP
	clientGroup     map[string]string      // T_GruposCli: NOMEF → G1
	repCommission   map[string]float64     // T_Reps: VENDEDOR → COMISSPCT
	freightRate     map[string]float64     // T_Fretes: UF → FRETEPCT
	allowanceRate   map[string]float64     // T_Verbas: NOMEF → VERBAPCT
	entryCosts      map[string][]costEntry // T_Entradas: PAI → costs, newest first
}

func buildLookups(sources map[string]*table.Table) *lookups {
	lk := &lookups{
		shipmentClients: make(map[string]bool),
		productParent:   make(map[string]string),
		clientGroup:     make(map[string]string),
		repCommission:   make(map[string]float64),
		freightRate:     make(map[string]float64),
		allowanceRate:   make(map[string]float64),
		entryCosts:      make(map[string][]costEntry),
	}

	forEachRow(sources["T_Remessas"], func(r table.Row) {
		if name, ok := table.AsString(r["NOMEF"]); ok {
			lk.shipmentClients[name] = true
		}
	})

	forEachRow(sources["T_ProdF"], func(r table.Row) {
		code, ok := table.AsString(r["CODPF"])
		if !ok {
			return
		}
		if _, dup := lk.productParent[code]; dup {
			return // first occurrence wins
		}
		if parent, ok := table.AsString(r["CODPP"]); ok {
			lk.productParent[code] = parent
		}
	})

	forEachRow(sources["T_GruposCli"], func(r table.Row) {
		name, ok := table.AsString(r["NOMEF"])
		if !ok {
			return
		}
		if _, dup := lk.clientGroup[name]; dup {
			return
		}
		if g, ok := table.AsString(r["G1"]); ok {
			lk.clientGroup[name] = g
		}
	})

	forEachRow(sources["T_Reps"], func(r table.Row) {
		name, ok := table.AsString(r["VENDEDOR"])
		if !ok {
			return
		}
		if _, dup := lk.repCommission[name]; dup {
			return
		}
		if pct, ok := table.AsFloat(r["COMISSPCT"]); ok {
			lk.repCommission[name] = pct
		}
	})

	forEachRow(sources["T_Fretes"], func(r table.Row) {
		uf, ok := table.AsString(r["UF"])
		if !ok {
			return
		}
		if _, dup := lk.freightRate[uf]; dup {
			return
		}
		if pct, ok := table.AsFloat(r["FRETEPCT"]); ok {
			lk.freightRate[uf] = pct
		}
	})

	forEachRow(sources["T_Verbas"], func(r table.Row) {
		name, ok := table.AsString(r["NOMEF"])
		if !ok {
			return
		}
		if _, dup := lk.allowanceRate[name]; dup {
			return
		}
		if pct, ok := table.AsFloat(r["VERBAPCT"]); ok {
			lk.allowanceRate[name] = pct
		}
	})

	forEachRow(sources["T_Entradas"], func(r table.Row) {
		parent, ok := table.AsString(r["PAI"])
		if !ok {
			return
		}
		date, ok := parseDate(r["ULTIMA ENTRADA"])
		if !ok {
			return
		}
		cost, ok := table.AsFloat(r["ULT CU R$"])
		if !ok {
			return
		}
		lk.entryCosts[parent] = append(lk.entryCosts[parent], costEntry{date: date, cost: cost})
	})
	for parent := range lk.entryCosts {
		entries := lk.entryCosts[parent]
		sort.Slice(entries, func(i, j int) bool { return entries[i].date.After(entries[j].date) })
	}

	return lk
}

// lastCostBefore returns the most recent entry cost for a parent product
// at or before the sale date, or the loud default when nothing matches.
func (lk *lookups) lastCostBefore(parent string, saleDate time.Time) float64 {
	for _, e := range lk.entryCosts[parent] {
		if !e.date.After(saleDate) {
			return e.cost
		}
	}
	return defaultECU
}

// forEachRow iterates a lookup table with uppercase normalization applied
// per row, tolerating a nil table (RequireSources already ran).
func forEachRow(t *table.Table, fn func(table.Row)) {
	if t == nil {
		return
	}
	norm := normalizeCase(t)
	for i := 0; i < norm.NumRows(); i++ {
		fn(norm.Row(i))
	}
}

// dateLayouts are tried in order for text date cells.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01-02-06",
	time.RFC3339,
}

// excelEpoch is day zero of the spreadsheet serial date system.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// parseDate reads a cell as a date: either a text date in a known layout
// or a numeric spreadsheet serial.
func parseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, x); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	case float64:
		if x <= 0 {
			return time.Time{}, false
		}
		return excelEpoch.Add(time.Duration(x * 24 * float64(time.Hour))), true
	default:
		return time.Time{}, false
	}
}
