package handlers

import (
	"net/http"

	"github.com/cloo-solutions/sqlsherpa/internal/api"
	"github.com/cloo-solutions/sqlsherpa/internal/domain"
)

type BrandingHandler struct {
	branding domain.Branding
}

func NewBrandingHandler(branding domain.Branding) *BrandingHandler {
	return &BrandingHandler{branding: branding}
}

func (h *BrandingHandler) Get(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.branding)
}
