// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mercadolabs/storebot/services/assistant/catalog"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List the report catalog",
	Run:   runReports,
}

func runReports(_ *cobra.Command, _ []string) {
	registry := catalog.NewRegistry(2025)
	for _, def := range registry.List() {
		fmt.Printf("%s\n  %s\n", def.Name, def.Description)
		if len(def.Params) == 0 {
			fmt.Println("  (sin parámetros)")
			continue
		}
		var params []string
		for _, p := range def.Params {
			if p.Kind == catalog.ParamInt {
				params = append(params, fmt.Sprintf("%s (default %d)", p.Name, p.Default))
				continue
			}
			params = append(params, p.Name)
		}
		fmt.Printf("  parámetros: %s\n", strings.Join(params, ", "))
	}
}
