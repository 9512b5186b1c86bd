// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import "strings"

// ExtractSearchTerm returns the free text after the matched keyword,
// lowered and trimmed of surrounding punctuation. "buscar producto Coca
// Cola" with keyword "buscar producto" yields "coca cola". Questions
// with nothing after the keyword yield "".
func ExtractSearchTerm(question, keyword string) string {
	q := strings.ToLower(question)
	idx := strings.Index(q, keyword)
	if idx < 0 {
		return ""
	}
	rest := q[idx+len(keyword):]
	return strings.Trim(rest, " \t¿?¡!.,;:\"'")
}
