// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: the database
// pool, the knowledge store, the indexing and retrieval services, and one
// query router per configured knowledge-base category.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huangkk10/ai-platform-rag/internal/config"
	"github.com/huangkk10/ai-platform-rag/internal/engine"
	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
	"github.com/huangkk10/ai-platform-rag/internal/log"
	"github.com/huangkk10/ai-platform-rag/internal/rag"
	"github.com/huangkk10/ai-platform-rag/internal/router"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store

	Vectorizer *rag.Vectorizer
	Retriever  *rag.Retriever

	Bindings *engine.Bindings

	// Routers holds one query router per configured category.
	Routers map[string]*router.Router
}

// Router returns the query router for a category.
func (a *App) Router(category string) (*router.Router, bool) {
	r, ok := a.Routers[category]
	return r, ok
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return nil
}
