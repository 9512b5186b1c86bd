// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"github.com/mercadolabs/storebot/services/llm"
)

// ToolDefs renders the catalog as model-facing tool definitions. Every
// parameter is declared required with an explicit default so the model
// always emits a fully populated argument object.
func ToolDefs(reg *Registry) []llm.ToolDef {
	reports := reg.List()
	defs := make([]llm.ToolDef, 0, len(reports))
	for i := range reports {
		def := &reports[i]
		params := llm.ToolParameters{
			Type:       "object",
			Properties: make(map[string]llm.ToolParamDef, len(def.Params)),
		}
		for _, p := range def.Params {
			params.Required = append(params.Required, p.Name)
			switch p.Kind {
			case ParamInt:
				params.Properties[p.Name] = llm.ToolParamDef{
					Type:        "integer",
					Description: p.Description,
					Default:     p.Default,
				}
			case ParamDateStart:
				start, _ := reg.DefaultDateRange()
				params.Properties[p.Name] = llm.ToolParamDef{
					Type:        "string",
					Description: p.Description,
					Default:     start,
				}
			case ParamString:
				params.Properties[p.Name] = llm.ToolParamDef{
					Type:        "string",
					Description: p.Description,
					Default:     p.DefaultText,
				}
			case ParamDateEnd:
				_, end := reg.DefaultDateRange()
				params.Properties[p.Name] = llm.ToolParamDef{
					Type:        "string",
					Description: p.Description,
					Default:     end,
				}
			}
		}
		defs = append(defs, llm.ToolDef{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return defs
}
