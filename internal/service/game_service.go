package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"edupanel/internal/backend"
	"edupanel/internal/models"
	"edupanel/internal/validation"
)

var (
	ErrInsufficientCoins = errors.New("not enough coins")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrItemNotFound      = errors.New("item not found")
)

// AvatarForm is the avatar editor form
type AvatarForm struct {
	Name     string `form:"name" validate:"notblank,max=60"`
	Seed     string `form:"seed" validate:"max=60"`
	ImageURL string `form:"image_url" validate:"omitempty,url"`
	Price    int    `form:"price" validate:"gte=0"`
}

// Shop is the shop page: items on sale and the buyer's character
type Shop struct {
	Items     []models.ShopItem
	Character models.Character
}

// GameService browses the game backend and reads the ranking from the main backend
type GameService struct {
	game   *backend.GameClient
	client *backend.Client
}

// NewGameService creates a new game service
func NewGameService(game *backend.GameClient, client *backend.Client) *GameService {
	return &GameService{game: game, client: client}
}

func (s *GameService) gameClient(session *models.Session) *backend.GameClient {
	return s.game.WithTokenSource(SessionTokenSource(session))
}

// GetShop loads the items for sale and the user's character
func (s *GameService) GetShop(ctx context.Context, session *models.Session) (*Shop, error) {
	client := s.gameClient(session)

	var items []models.ShopItem
	var character *models.Character
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = client.ShopItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		character, err = client.Character(gctx, session.User.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}
	return &Shop{Items: items, Character: *character}, nil
}

// Purchase buys itemID. Ownership and balance are checked against the loaded
// shop first; the backend debits the coins.
func (s *GameService) Purchase(ctx context.Context, session *models.Session, shop *Shop, itemID string) (*models.Character, error) {
	var item *models.ShopItem
	for i := range shop.Items {
		if shop.Items[i].ID == itemID {
			item = &shop.Items[i]
			break
		}
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if shop.Character.Owns(itemID) {
		return nil, ErrAlreadyOwned
	}
	if shop.Character.Coins < item.Price {
		return nil, ErrInsufficientCoins
	}

	character, err := s.gameClient(session).Purchase(ctx, session.User.ID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to purchase %s: %w", item.Name, err)
	}
	return character, nil
}

// ListAvatars returns every avatar with its image resolved
func (s *GameService) ListAvatars(ctx context.Context, session *models.Session) ([]models.Avatar, error) {
	avatars, err := s.gameClient(session).ListAvatars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list avatars: %w", err)
	}
	return avatars, nil
}

func (form AvatarForm) avatar() models.Avatar {
	return models.Avatar{
		Name:     strings.TrimSpace(form.Name),
		Seed:     strings.TrimSpace(form.Seed),
		ImageURL: strings.TrimSpace(form.ImageURL),
		Price:    form.Price,
	}
}

// CreateAvatar adds an avatar to the catalogue
func (s *GameService) CreateAvatar(ctx context.Context, session *models.Session, form AvatarForm) (*models.Avatar, error) {
	if err := validation.Struct(form); err != nil {
		return nil, err
	}
	avatar, err := s.gameClient(session).CreateAvatar(ctx, form.avatar())
	if err != nil {
		return nil, fmt.Errorf("failed to create avatar: %w", err)
	}
	return avatar, nil
}

// UpdateAvatar edits an avatar
func (s *GameService) UpdateAvatar(ctx context.Context, session *models.Session, id string, form AvatarForm) error {
	if err := validation.Struct(form); err != nil {
		return err
	}
	if err := s.gameClient(session).UpdateAvatar(ctx, id, form.avatar()); err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

// DeleteAvatar removes an avatar
func (s *GameService) DeleteAvatar(ctx context.Context, session *models.Session, id string) error {
	if err := s.gameClient(session).DeleteAvatar(ctx, id); err != nil {
		return fmt.Errorf("failed to delete avatar: %w", err)
	}
	return nil
}

// Ranking returns the XP ranking as computed by the backend
func (s *GameService) Ranking(ctx context.Context, session *models.Session) ([]models.RankingEntry, error) {
	ranking, err := userClient(s.client, session).Ranking(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking: %w", err)
	}
	return ranking, nil
}
