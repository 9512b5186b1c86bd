// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"strings"
	"time"
)

// DateRange is an inclusive ISO date window.
type DateRange struct {
	Start string // YYYY-MM-DD
	End   string // YYYY-MM-DD
}

const isoDate = "2006-01-02"

// Months in calendar order; index+1 is the month number. Spanish month
// names carry no accents, so lowercase substring matching is enough.
var spanishMonths = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var lastWeekPhrases = []string{
	"última semana", "ultima semana", "semana pasada", "last week",
}

var thisMonthPhrases = []string{
	"este mes", "this month",
}

// ExtractDateRange reads a date window out of the question.
//
// Recognized, in precedence order: a Spanish month name (that month in
// the operating year), a this-month phrase (the calendar month of now),
// a last-week phrase (the seven days up to now). Only the first rule
// that fires applies. Questions naming no period get the full operating
// window, January 1st of year through December 31st of the following
// year.
func ExtractDateRange(question string, now time.Time, year int) DateRange {
	q := strings.ToLower(question)

	for i, name := range spanishMonths {
		if strings.Contains(q, name) {
			return monthBounds(year, time.Month(i+1))
		}
	}

	for _, phrase := range thisMonthPhrases {
		if strings.Contains(q, phrase) {
			return monthBounds(now.Year(), now.Month())
		}
	}

	for _, phrase := range lastWeekPhrases {
		if strings.Contains(q, phrase) {
			return DateRange{
				Start: now.AddDate(0, 0, -7).Format(isoDate),
				End:   now.Format(isoDate),
			}
		}
	}

	return DateRange{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Format(isoDate),
		End:   time.Date(year+1, time.December, 31, 0, 0, 0, 0, time.UTC).Format(isoDate),
	}
}

// monthBounds is the first through last day of the month; AddDate rolls
// the first of the next month back one day, so December lands on the 31st.
func monthBounds(year int, month time.Month) DateRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateRange{Start: first.Format(isoDate), End: last.Format(isoDate)}
}
