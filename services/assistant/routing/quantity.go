// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import "strconv"

// ExtractQuantity returns the first run of digits in the question as an
// integer. Questions like "top 5 productos" yield 5; questions with no
// digits report ok=false so the caller can apply the report's default.
func ExtractQuantity(question string) (n int, ok bool) {
	start := -1
	for i := 0; i < len(question); i++ {
		c := question[i]
		if c >= '0' && c <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(question[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(question[start:])
		return n, err == nil
	}
	return 0, false
}
