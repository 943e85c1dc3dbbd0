package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupanel/internal/backend"
	"edupanel/internal/models"
)

func newGameService(t *testing.T, mux *http.ServeMux) *GameService {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewGameService(backend.NewGameClient(srv.URL, "https://assets.test"), newBackend(t, http.NewServeMux()))
}

func TestPurchase(t *testing.T) {
	var purchases atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /shop/items", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []models.ShopItem{
			{ID: "hat", Name: "Hat", Price: 30},
			{ID: "cape", Name: "Cape", Price: 500},
			{ID: "boots", Name: "Boots", Price: 10},
		})
	})
	mux.HandleFunc("GET /characters/s1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer student-token", r.Header.Get("Authorization"))
		writeJSON(t, w, models.Character{UserID: "s1", Coins: 100, Items: []string{"boots"}})
	})
	mux.HandleFunc("POST /characters/s1/purchase", func(w http.ResponseWriter, r *http.Request) {
		purchases.Add(1)
		writeJSON(t, w, models.Character{UserID: "s1", Coins: 70, Items: []string{"boots", "hat"}})
	})

	svc := newGameService(t, mux)
	ctx := context.Background()
	shop, err := svc.GetShop(ctx, studentSession())
	require.NoError(t, err)
	assert.Len(t, shop.Items, 3)
	assert.Equal(t, 100, shop.Character.Coins)

	tests := []struct {
		item    string
		wantErr error
	}{
		{"cape", ErrInsufficientCoins},
		{"boots", ErrAlreadyOwned},
		{"sword", ErrItemNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			_, err := svc.Purchase(ctx, studentSession(), shop, tt.item)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, purchases.Load(), "rejected purchases must not reach the backend")

	character, err := svc.Purchase(ctx, studentSession(), shop, "hat")
	require.NoError(t, err)
	assert.Equal(t, 70, character.Coins)
	assert.True(t, character.Owns("hat"))
	assert.Equal(t, int32(1), purchases.Load())
}

func TestListAvatarsResolvesImages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /avatars", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []models.Avatar{
			{ID: "a1", Name: "Fox", Seed: "fox"},
			{ID: "a2", Name: "Owl", ImageURL: "https://cdn.test/owl.png"},
		})
	})

	avatars, err := newGameService(t, mux).ListAvatars(context.Background(), teacherSession())
	require.NoError(t, err)
	require.Len(t, avatars, 2)
	assert.Equal(t, "https://assets.test/adventurer/svg?seed=fox", avatars[0].ImageURL)
	assert.Equal(t, "https://cdn.test/owl.png", avatars[1].ImageURL)
}

func TestCreateAvatarValidates(t *testing.T) {
	svc := newGameService(t, http.NewServeMux())
	_, err := svc.CreateAvatar(context.Background(), teacherSession(), AvatarForm{Name: " ", Price: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name cannot be blank")
}
