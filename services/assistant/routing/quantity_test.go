// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import "testing"

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     int
		wantOK   bool
	}{
		{name: "top 5", question: "¿Top 5 productos más vendidos?", want: 5, wantOK: true},
		{name: "first of several numbers", question: "los 3 mejores de los 100 productos", want: 3, wantOK: true},
		{name: "trailing number", question: "muéstrame el top 15", want: 15, wantOK: true},
		{name: "no digits", question: "¿cuáles son los mejores empleados?", wantOK: false},
		{name: "empty", question: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractQuantity(tt.question)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("quantity = %d, want %d", got, tt.want)
			}
		})
	}
}
