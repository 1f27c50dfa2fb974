package models

import "github.com/shopspring/decimal"

// Game is the read-only view of a game owned by the game service.
type Game struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Status       GameStatus      `json:"status"`
	StartBalance decimal.Decimal `json:"start_balance"`
}

type GameStatus string

const (
	GameStatusNew      GameStatus = "NEW"
	GameStatusActive   GameStatus = "ACTIVE"
	GameStatusFinished GameStatus = "FINISHED"
)

func (g *Game) Active() bool {
	return g.Status == GameStatusActive
}
