package models

// Avatar is a purchasable character look served by the game backend
type Avatar struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Seed     string `json:"seed"`
	ImageURL string `json:"image_url,omitempty"`
	Price    int    `json:"price"`
}

// ShopItem is an accessory that can be bought with coins
type ShopItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int    `json:"price"`
	ImageURL string `json:"image_url"`
}

// Character is a student's game profile
type Character struct {
	UserID   string   `json:"user_id"`
	Coins    int      `json:"coins"`
	XP       int      `json:"xp"`
	Level    int      `json:"level"`
	Trophies []string `json:"trophies"`
	AvatarID string   `json:"avatar_id"`
	Items    []string `json:"items"`
}

// Owns reports whether the character already holds itemID
func (c Character) Owns(itemID string) bool {
	for _, id := range c.Items {
		if id == itemID {
			return true
		}
	}
	return false
}

// RankingEntry is one row of the XP ranking computed by the backend
type RankingEntry struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	XP       int    `json:"xp"`
	Position int    `json:"position"`
}
