package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"edupanel/internal/grading"
	"edupanel/internal/service"
	"edupanel/internal/validation"
)

// GameHandler serves the shop, the avatar catalogue and the ranking
type GameHandler struct {
	gameService *service.GameService
	middleware  *Middleware
	templates   *template.Template
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameService *service.GameService, middleware *Middleware, templates *template.Template) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		middleware:  middleware,
		templates:   templates,
	}
}

func (h *GameHandler) page(w http.ResponseWriter, r *http.Request, title string) Page {
	return Page{
		Title:     title,
		Session:   GetSessionFromContext(r.Context()),
		CSRFToken: h.middleware.CSRFToken(r),
		Flash:     readFlash(w, r),
	}
}

// ShowShop renders the items for sale and the student's coins
func (h *GameHandler) ShowShop(w http.ResponseWriter, r *http.Request) {
	shop, err := h.gameService.GetShop(r.Context(), GetSessionFromContext(r.Context()))
	if err != nil {
		respondWithBackendError(w, "Error loading shop", err)
		return
	}
	renderTemplate(w, h.templates, "shop.tmpl", http.StatusOK, ShopViewData{Page: h.page(w, r, "Shop - EduPanel"), Shop: shop})
}

// Purchase buys one shop item
func (h *GameHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	shop, err := h.gameService.GetShop(r.Context(), session)
	if err != nil {
		respondWithBackendError(w, "Error loading shop", err)
		return
	}

	if _, err := h.gameService.Purchase(r.Context(), session, shop, r.PathValue("id")); err != nil {
		status := http.StatusConflict
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrAlreadyOwned), errors.Is(err, service.ErrInsufficientCoins):
		default:
			respondWithBackendError(w, "Error purchasing item", err)
			return
		}
		page := h.page(w, r, "Shop - EduPanel")
		page.Error = err.Error()
		renderTemplate(w, h.templates, "shop.tmpl", status, ShopViewData{Page: page, Shop: shop})
		return
	}

	setFlash(w, r, grading.NewNotice("Item purchased", time.Now()))
	http.Redirect(w, r, "/shop", http.StatusSeeOther)
}

func avatarFormFromRequest(r *http.Request) (service.AvatarForm, error) {
	form := service.AvatarForm{
		Name:     r.FormValue("name"),
		Seed:     r.FormValue("seed"),
		ImageURL: r.FormValue("image_url"),
	}
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := strconv.Atoi(raw)
		if err != nil {
			return form, validation.Errors{"price": "price must be a whole number"}
		}
		form.Price = price
	}
	return form, nil
}

func (h *GameHandler) renderAvatars(w http.ResponseWriter, r *http.Request, status int, form service.AvatarForm, fields map[string]string) {
	avatars, err := h.gameService.ListAvatars(r.Context(), GetSessionFromContext(r.Context()))
	if err != nil {
		respondWithBackendError(w, "Error listing avatars", err)
		return
	}
	page := h.page(w, r, "Avatars - EduPanel")
	if len(fields) > 0 {
		page.Error = "Please fix the highlighted fields"
	}
	data := AvatarsViewData{Page: page, Avatars: avatars, Form: form, Errors: fields}
	renderTemplate(w, h.templates, "avatars.tmpl", status, data)
}

// ShowAvatars renders the avatar catalogue with its editor
func (h *GameHandler) ShowAvatars(w http.ResponseWriter, r *http.Request) {
	h.renderAvatars(w, r, http.StatusOK, service.AvatarForm{}, nil)
}

// SaveAvatar creates an avatar, or updates one when the route carries an ID
func (h *GameHandler) SaveAvatar(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	id := r.PathValue("id")

	form, err := avatarFormFromRequest(r)
	if err == nil {
		if id == "" {
			_, err = h.gameService.CreateAvatar(r.Context(), session, form)
		} else {
			err = h.gameService.UpdateAvatar(r.Context(), session, id, form)
		}
	}
	if err != nil {
		fields, ok := validation.AsErrors(err)
		if !ok {
			respondWithBackendError(w, "Error saving avatar", err)
			return
		}
		h.renderAvatars(w, r, http.StatusUnprocessableEntity, form, fields)
		return
	}

	setFlash(w, r, grading.NewNotice("Avatar saved", time.Now()))
	http.Redirect(w, r, "/teacher/avatars", http.StatusSeeOther)
}

// DeleteAvatar removes an avatar from the catalogue
func (h *GameHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.gameService.DeleteAvatar(r.Context(), GetSessionFromContext(r.Context()), r.PathValue("id")); err != nil {
		respondWithBackendError(w, "Error deleting avatar", err)
		return
	}
	http.Redirect(w, r, "/teacher/avatars", http.StatusSeeOther)
}

// ShowRanking renders the XP ranking
func (h *GameHandler) ShowRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.gameService.Ranking(r.Context(), GetSessionFromContext(r.Context()))
	if err != nil {
		respondWithBackendError(w, "Error loading ranking", err)
		return
	}
	renderTemplate(w, h.templates, "ranking.tmpl", http.StatusOK, RankingViewData{Page: h.page(w, r, "Ranking - EduPanel"), Ranking: ranking})
}
