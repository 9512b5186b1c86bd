// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the chat endpoints with the router.
//
// Description:
//
//	Registers all /v1/chat* endpoints with the given Gin router group.
//	The group should already carry any required middleware.
//
// Endpoints:
//
//	POST /v1/chat - Answer a user message
//	GET  /v1/chat/health - Health check
//
// Example:
//
//	handlers := assistant.NewHandlers(orchestrator, limiter, logger)
//	v1 := router.Group("/v1")
//	assistant.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/chat", handlers.HandleChat)
	rg.GET("/chat/health", handlers.HandleHealth)
}
