// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"testing"

	"github.com/mercadolabs/storebot/services/store"
)

func TestClassifyRotation(t *testing.T) {
	tests := []struct {
		name  string
		stock float64
		sold  float64
		want  string
	}{
		{name: "out of stock wins even with sales", stock: 0, sold: 80, want: RotationOutOfStock},
		{name: "out of stock unsold", stock: 0, sold: 0, want: RotationOutOfStock},
		{name: "unsold with stock", stock: 40, sold: 0, want: RotationUnsold},
		{name: "high rotation above 50", stock: 10, sold: 51, want: RotationHigh},
		{name: "exactly 50 is medium", stock: 10, sold: 50, want: RotationMedium},
		{name: "exactly 20 is medium", stock: 10, sold: 20, want: RotationMedium},
		{name: "below 20 is low", stock: 10, sold: 19, want: RotationLow},
		{name: "single unit sold", stock: 10, sold: 1, want: RotationLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRotation(tt.stock, tt.sold); got != tt.want {
				t.Errorf("classifyRotation(%v, %v) = %q, want %q", tt.stock, tt.sold, got, tt.want)
			}
		})
	}
}

func TestAnnotateRotation(t *testing.T) {
	rows := []store.Row{
		{"nombre": "Camisa", "stock_actual": int64(0), "cantidad_vendida": int64(90)},
		{"nombre": "Pantalón", "stock_actual": int64(30), "cantidad_vendida": "55"},
	}
	out := annotateRotation(rows)
	if out[0]["categoria_rotacion"] != RotationOutOfStock {
		t.Errorf("row 0 bucket = %v", out[0]["categoria_rotacion"])
	}
	// NUMERIC columns arrive as strings and still classify.
	if out[1]["categoria_rotacion"] != RotationHigh {
		t.Errorf("row 1 bucket = %v", out[1]["categoria_rotacion"])
	}
}

func TestDemandRatio_NilOnZeroStock(t *testing.T) {
	if r := demandRatio(100, 0); r != nil {
		t.Errorf("ratio with zero stock = %v, want nil", *r)
	}
	r := demandRatio(125, 50)
	if r == nil || *r != 2.5 {
		t.Errorf("ratio = %v, want 2.5", r)
	}
}

func TestClassifyDemand(t *testing.T) {
	ratio := func(v float64) *float64 { return &v }
	tests := []struct {
		name string
		r    *float64
		want string
	}{
		{name: "nil ratio", r: nil, want: DemandNone},
		{name: "above 2", r: ratio(2.5), want: DemandHigh},
		{name: "exactly 2 is moderate", r: ratio(2), want: DemandModerate},
		{name: "above 1", r: ratio(1.5), want: DemandModerate},
		{name: "above half", r: ratio(0.6), want: DemandLow},
		{name: "half exactly", r: ratio(0.5), want: DemandNone},
		{name: "zero", r: ratio(0), want: DemandNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDemand(tt.r); got != tt.want {
				t.Errorf("classifyDemand = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnnotateDemand_SortsNilRatiosLast(t *testing.T) {
	rows := []store.Row{
		{"categoria": "Limpieza", "stock_total": int64(0), "cantidad_vendida": int64(40)},
		{"categoria": "Bebidas", "stock_total": int64(50), "cantidad_vendida": int64(125)},
		{"categoria": "Almacén", "stock_total": int64(100), "cantidad_vendida": int64(80)},
	}
	out := annotateDemand(rows)

	if out[0]["categoria"] != "Bebidas" {
		t.Errorf("first category = %v, want Bebidas", out[0]["categoria"])
	}
	if out[0]["situacion"] != DemandHigh {
		t.Errorf("Bebidas situacion = %v", out[0]["situacion"])
	}
	if out[1]["categoria"] != "Almacén" {
		t.Errorf("second category = %v, want Almacén", out[1]["categoria"])
	}
	if out[1]["situacion"] != DemandLow {
		t.Errorf("Almacén situacion = %v", out[1]["situacion"])
	}
	if out[2]["categoria"] != "Limpieza" {
		t.Errorf("nil ratio should sort last, got %v", out[2]["categoria"])
	}
	if out[2]["rotacion_ratio"] != nil {
		t.Errorf("zero stock ratio = %v, want nil", out[2]["rotacion_ratio"])
	}
	if out[2]["situacion"] != DemandNone {
		t.Errorf("Limpieza situacion = %v", out[2]["situacion"])
	}
}
