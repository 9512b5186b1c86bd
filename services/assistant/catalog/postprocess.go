// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"math"
	"sort"
	"strconv"

	"github.com/mercadolabs/storebot/services/store"
)

// ==== Rotation classification ====

// Rotation buckets, checked in priority order: an exhausted product is
// 'Agotado' even when it sold well during the period.
const (
	RotationOutOfStock = "Agotado"
	RotationUnsold     = "No vendido"
	RotationHigh       = "Alta rotación"
	RotationMedium     = "Rotación media"
	RotationLow        = "Baja rotación"
)

func classifyRotation(stock, sold float64) string {
	switch {
	case stock == 0:
		return RotationOutOfStock
	case sold == 0:
		return RotationUnsold
	case sold > 50:
		return RotationHigh
	case sold >= 20:
		return RotationMedium
	default:
		return RotationLow
	}
}

// annotateRotation adds the categoria_rotacion column to every row. Row
// order from the query is preserved.
func annotateRotation(rows []store.Row) []store.Row {
	for _, row := range rows {
		stock, _ := asFloat(row["stock_actual"])
		sold, _ := asFloat(row["cantidad_vendida"])
		row["categoria_rotacion"] = classifyRotation(stock, sold)
	}
	return rows
}

// ==== Demand classification ====

// Demand buckets by sold/stock ratio.
const (
	DemandHigh     = "Alta demanda, stock bajo"
	DemandModerate = "Demanda moderada"
	DemandLow      = "Baja demanda"
	DemandNone     = "Sin movimiento"
)

func classifyDemand(ratio *float64) string {
	switch {
	case ratio == nil:
		return DemandNone
	case *ratio > 2:
		return DemandHigh
	case *ratio > 1:
		return DemandModerate
	case *ratio > 0.5:
		return DemandLow
	default:
		return DemandNone
	}
}

// demandRatio is sold over stock, rounded to two decimals. A category with
// no stock has no meaningful ratio and yields nil.
func demandRatio(sold, stock float64) *float64 {
	if stock == 0 {
		return nil
	}
	r := math.Round(sold/stock*100) / 100
	return &r
}

// annotateDemand adds rotacion_ratio and situacion to every row, then
// sorts by ratio descending with nil ratios last.
func annotateDemand(rows []store.Row) []store.Row {
	ratios := make([]*float64, len(rows))
	for i, row := range rows {
		sold, _ := asFloat(row["cantidad_vendida"])
		stock, _ := asFloat(row["stock_total"])
		ratio := demandRatio(sold, stock)
		ratios[i] = ratio
		if ratio == nil {
			row["rotacion_ratio"] = nil
		} else {
			row["rotacion_ratio"] = *ratio
		}
		row["situacion"] = classifyDemand(ratio)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := ratioOf(rows[i]), ratioOf(rows[j])
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
	return rows
}

func ratioOf(row store.Row) *float64 {
	v, ok := row["rotacion_ratio"]
	if !ok || v == nil {
		return nil
	}
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// asFloat coerces the driver's numeric representations (int64 from
// counts, float64 from sums, strings from NUMERIC columns) to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
