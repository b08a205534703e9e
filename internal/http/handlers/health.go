package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CatalogList lists the selectable styles, sub-styles, ratios and angles.
func (a *App) CatalogList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Catalog)
}
