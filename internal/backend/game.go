package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"edupanel/internal/models"
)

// GameClient talks to the gamification backend
type GameClient struct {
	t         *transport
	assetBase string
}

// NewGameClient creates a client for the game backend at baseURL.
// Avatar images are resolved against assetBase.
func NewGameClient(baseURL, assetBase string, opts ...Option) *GameClient {
	return &GameClient{
		t:         newTransport(baseURL, opts...),
		assetBase: strings.TrimRight(assetBase, "/"),
	}
}

// WithTokenSource returns a client that authenticates every request with ts
func (g *GameClient) WithTokenSource(ts oauth2.TokenSource) *GameClient {
	return &GameClient{t: g.t.withTokenSource(ts), assetBase: g.assetBase}
}

// AvatarURL returns the image URL for an avatar. Absolute image URLs are kept;
// otherwise the image is generated by the asset host from the avatar seed.
func (g *GameClient) AvatarURL(a models.Avatar) string {
	if strings.HasPrefix(a.ImageURL, "http://") || strings.HasPrefix(a.ImageURL, "https://") {
		return a.ImageURL
	}
	if a.ImageURL != "" {
		return g.assetBase + "/" + strings.TrimLeft(a.ImageURL, "/")
	}
	seed := a.Seed
	if seed == "" {
		seed = a.Name
	}
	return g.assetBase + "/adventurer/svg?seed=" + url.QueryEscape(seed)
}

func (g *GameClient) resolve(avatars []models.Avatar) []models.Avatar {
	for i := range avatars {
		avatars[i].ImageURL = g.AvatarURL(avatars[i])
	}
	return avatars
}

func (g *GameClient) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	var out []models.Avatar
	if err := g.t.do(ctx, http.MethodGet, "/avatars", nil, nil, &out); err != nil {
		return nil, err
	}
	return g.resolve(out), nil
}

func (g *GameClient) GetAvatar(ctx context.Context, id string) (*models.Avatar, error) {
	var out models.Avatar
	if err := g.t.do(ctx, http.MethodGet, "/avatars/"+escape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	out.ImageURL = g.AvatarURL(out)
	return &out, nil
}

func (g *GameClient) CreateAvatar(ctx context.Context, a models.Avatar) (*models.Avatar, error) {
	var out models.Avatar
	if err := g.t.do(ctx, http.MethodPost, "/avatars", nil, a, &out); err != nil {
		return nil, err
	}
	out.ImageURL = g.AvatarURL(out)
	return &out, nil
}

func (g *GameClient) UpdateAvatar(ctx context.Context, id string, a models.Avatar) error {
	return g.t.do(ctx, http.MethodPatch, "/avatars/"+escape(id), nil, a, nil)
}

func (g *GameClient) DeleteAvatar(ctx context.Context, id string) error {
	return g.t.do(ctx, http.MethodDelete, "/avatars/"+escape(id), nil, nil, nil)
}

// ShopItems lists the accessories for sale
func (g *GameClient) ShopItems(ctx context.Context) ([]models.ShopItem, error) {
	var out []models.ShopItem
	err := g.t.do(ctx, http.MethodGet, "/shop/items", nil, nil, &out)
	return out, err
}

// Character returns a student's game profile
func (g *GameClient) Character(ctx context.Context, userID string) (*models.Character, error) {
	var out models.Character
	if err := g.t.do(ctx, http.MethodGet, "/characters/"+escape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Purchase buys an item for the user; the backend checks and debits coins
func (g *GameClient) Purchase(ctx context.Context, userID, itemID string) (*models.Character, error) {
	body := map[string]string{"item_id": itemID}
	var out models.Character
	if err := g.t.do(ctx, http.MethodPost, "/characters/"+escape(userID)+"/purchase", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
