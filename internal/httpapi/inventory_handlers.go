package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"medicore.org/internal/inventory"
)

type createItemRequest struct {
	Name         string `json:"item_name"`
	Type         string `json:"item_type"`
	Category     string `json:"category"`
	Quantity     int64  `json:"quantity"`
	Unit         string `json:"unit"`
	ReorderLevel int64  `json:"reorder_level"`
	Supplier     string `json:"supplier"`
	Location     string `json:"location"`
	Notes        string `json:"notes"`
}

type adjustStockRequest struct {
	Delta int64  `json:"quantity_change"`
	Notes string `json:"notes"`
}

func (a *API) handleInventoryCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.requireModule(w, r, "inventory", capView) {
			return
		}
		a.listItems(w, r)
	case http.MethodPost:
		if !a.requireModule(w, r, "inventory", capCreate) {
			return
		}
		a.createItem(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleInventoryResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/inventory/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if path == "low-stock" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requireModule(w, r, "inventory", capView) {
			return
		}
		a.listLowStock(w, r)
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requireModule(w, r, "inventory", capView) {
			return
		}
		a.getItem(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "adjust":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if !a.requireModule(w, r, "inventory", capEdit) {
			return
		}
		a.adjustStock(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "transactions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requireModule(w, r, "inventory", capView) {
			return
		}
		a.listTransactions(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	item, err := a.cfg.Inventory.CreateItem(r.Context(), inventory.Item{
		Name:         strings.TrimSpace(req.Name),
		Type:         strings.TrimSpace(req.Type),
		Category:     strings.TrimSpace(req.Category),
		Quantity:     req.Quantity,
		Unit:         strings.TrimSpace(req.Unit),
		ReorderLevel: req.ReorderLevel,
		Supplier:     strings.TrimSpace(req.Supplier),
		Location:     strings.TrimSpace(req.Location),
		Notes:        req.Notes,
	})
	if err != nil {
		handleInventoryError(w, r, err)
		return
	}

	a.record(r, "inventory_item_created", "inventory", item.ID, item.Name)
	w.Header().Set("Location", "/v1/inventory/"+item.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "inventory item created",
		"item":    item,
	})
}

func (a *API) listItems(w http.ResponseWriter, r *http.Request) {
	itemType := strings.TrimSpace(r.URL.Query().Get("item_type"))
	if itemType != "" && !inventory.ValidType(itemType) {
		writeError(w, r, http.StatusBadRequest, "unknown item_type "+itemType)
		return
	}
	items, err := a.cfg.Inventory.ListItems(r.Context(), itemType)
	if err != nil {
		handleInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := a.cfg.Inventory.ListLowStock(r.Context())
	if err != nil {
		handleInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getItem(w http.ResponseWriter, r *http.Request, id string) {
	item, err := a.cfg.Inventory.GetItem(r.Context(), id)
	if err != nil {
		handleInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) adjustStock(w http.ResponseWriter, r *http.Request, id string) {
	var req adjustStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	staffID, _ := userID(r.Context())
	newQuantity, err := a.cfg.Inventory.Adjust(r.Context(), id, req.Delta, staffID, req.Notes)
	if err != nil {
		handleInventoryError(w, r, err)
		return
	}

	a.record(r, "stock_adjustment", "inventory", id, strconv.FormatInt(req.Delta, 10))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "stock adjusted",
		"item_id":      id,
		"new_quantity": newQuantity,
	})
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request, id string) {
	txs, err := a.cfg.Inventory.Transactions(r.Context(), id)
	if err != nil {
		handleInventoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func handleInventoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
