package salesb2b

import (
	"github.com/shopspring/decimal"

	"github.com/vk/factbuild/internal/table"
)

// taxRate is the combined PIS/COFINS share deducted from merchandise
// revenue in the margin formula.
var taxRate = decimal.NewFromFloat(0.0925)

// joinLookups fills the lookup-derived columns on every line, with the
// documented defaults where a lookup has no match.
func joinLookups(t *table.Table, lk *lookups) {
	for _, col := range []string{"REM_NF", "CODPP", "G1", "ECU", "COMISSPCT", "FRETEPCT", "VERBAPCT"} {
		t.AddColumn(col)
	}

	for i := 0; i < t.NumRows(); i++ {
		r := t.Row(i)
		client, _ := table.AsString(r["NOMEF"])

		if lk.shipmentClients[client] {
			r["REM_NF"] = 1.0
		} else {
			r["REM_NF"] = 0.0
		}

		code, _ := table.AsString(r["CODPF"])
		parent, ok := lk.productParent[code]
		if !ok {
			parent = defaultCODPP
		}
		r["CODPP"] = parent

		group, ok := lk.clientGroup[client]
		if !ok {
			group = defaultG1
		}
		r["G1"] = group

		if saleDate, ok := parseDate(r["DATA"]); ok {
			r["ECU"] = lk.lastCostBefore(parent, saleDate)
		} else {
			r["ECU"] = defaultECU
		}

		rep, _ := table.AsString(r["VENDEDOR"])
		r["COMISSPCT"] = lk.repCommission[rep]

		uf, _ := table.AsString(r["UF"])
		freight := lk.freightRate[uf]
		if group == "DROP" || group == "ALWE" {
			freight = 0 // these channels carry their own freight
		}
		r["FRETEPCT"] = freight

		r["VERBAPCT"] = lk.allowanceRate[client]
	}
}

// deriveColumns computes the cost, commission, freight, allowance, and
// margin columns line by line. Money arithmetic runs on decimals and lands
// back in the table as float64.
func deriveColumns(t *table.Table) {
	for _, col := range []string{"C", "B", "ECT", "COMISSVLR", "FRETEVLR", "VERBAVLR", "MARGVLR", "MARGPCT"} {
		t.AddColumn(col)
	}

	for i := 0; i < t.NumRows(); i++ {
		r := t.Row(i)

		remNF := dec(r["REM_NF"])
		c := decimal.NewFromInt(1).Sub(remNF)
		r["C"] = c.InexactFloat64()

		op, _ := table.AsString(r["OP"])
		if op == "REMESSA DE PRODUTO" && c.IsPositive() {
			r["B"] = 1.0
		} else {
			r["B"] = 0.0
		}

		ecu := dec(r["ECU"])
		qt := dec(r["QT"])
		ect := ecu.Mul(qt)
		r["ECT"] = ect.InexactFloat64()

		pmercT := dec(r["PMERC_T"])
		pnfT := dec(r["PNF_T"])
		icmsT := dec(r["ICMS_T"])

		comiss := dec(r["COMISSPCT"]).Mul(pmercT).Mul(c)
		r["COMISSVLR"] = comiss.InexactFloat64()

		freightPct := dec(r["FRETEPCT"])
		byRevenue := freightPct.Mul(pnfT).Mul(c)
		byCost := freightPct.Mul(ect).Mul(c).Mul(decimal.NewFromInt(2))
		freight := decimal.Max(byRevenue, byCost)
		r["FRETEVLR"] = freight.InexactFloat64()

		allowance := dec(r["VERBAPCT"]).Mul(pnfT).Mul(c)
		r["VERBAVLR"] = allowance.InexactFloat64()

		netRevenue := pmercT.Mul(decimal.NewFromInt(1).Sub(taxRate)).Sub(icmsT)
		margin := c.Mul(netRevenue).Sub(allowance).Sub(freight).Sub(comiss).Sub(ect)
		r["MARGVLR"] = margin.InexactFloat64()

		if pmercT.IsZero() {
			r["MARGPCT"] = 0.0
		} else {
			r["MARGPCT"] = margin.Div(pmercT).InexactFloat64()
		}
	}
}

// roundColumns rounds every numeric cell to 2 decimal places, except the
// margin percentage, which keeps 3.
func roundColumns(t *table.Table) {
	for _, col := range t.Columns() {
		places := int32(2)
		if col == "MARGPCT" {
			places = 3
		}
		for i := 0; i < t.NumRows(); i++ {
			r := t.Row(i)
			if f, ok := r[col].(float64); ok {
				r[col] = decimal.NewFromFloat(f).Round(places).InexactFloat64()
			}
		}
	}
}

// dec reads a cell as a decimal, treating absent or non-numeric cells as
// zero; missing money columns must not poison whole-line arithmetic.
func dec(v any) decimal.Decimal {
	if f, ok := table.AsFloat(v); ok {
		return decimal.NewFromFloat(f)
	}
	return decimal.Zero
}
