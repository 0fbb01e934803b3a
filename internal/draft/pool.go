package draft

import (
	"fmt"

	"github.com/Billy-Davies-2/word-card-draft/internal/models"
)

// CardSpec is the session input for one card
type CardSpec struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Pool is the ordered, fixed-membership set of cards for one draft
type Pool struct {
	cards []models.Card
	index map[string]int
}

// NewPool builds a pool from specs in order. Empty input, empty keys and duplicate keys are rejected.
func NewPool(specs []CardSpec) (*Pool, error) {
	if len(specs) == 0 {
		return nil, ErrInvalidPool.with("no cards")
	}

	p := &Pool{
		cards: make([]models.Card, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for i, s := range specs {
		if s.Key == "" {
			return nil, ErrInvalidPool.with(fmt.Sprintf("card %d has an empty key", i))
		}
		if _, dup := p.index[s.Key]; dup {
			return nil, ErrInvalidPool.with(fmt.Sprintf("duplicate key %q", s.Key))
		}
		p.index[s.Key] = len(p.cards)
		p.cards = append(p.cards, models.Card{Key: s.Key, Label: s.Label, Status: models.StatusAvailable})
	}
	return p, nil
}

// Len returns the number of cards
func (p *Pool) Len() int {
	return len(p.cards)
}

// Get returns a copy of the card with the given key
func (p *Pool) Get(key string) (models.Card, error) {
	i, ok := p.index[key]
	if !ok {
		return models.Card{}, ErrUnknownCard.with(key)
	}
	return p.cards[i], nil
}

// Status returns the status of the card with the given key
func (p *Pool) Status(key string) (models.CardStatus, error) {
	c, err := p.Get(key)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}

// Cards returns a copy of every card in pool order
func (p *Pool) Cards() []models.Card {
	out := make([]models.Card, len(p.cards))
	copy(out, p.cards)
	return out
}

// CountAvailable returns how many cards are still Available
func (p *Pool) CountAvailable() int {
	n := 0
	for _, c := range p.cards {
		if c.Status == models.StatusAvailable {
			n++
		}
	}
	return n
}

// setStatus applies one of the permitted transitions. team is only meaningful for Claimed.
func (p *Pool) setStatus(key string, to models.CardStatus, team models.TeamID) error {
	i, ok := p.index[key]
	if !ok {
		return ErrUnknownCard.with(key)
	}
	c := &p.cards[i]
	if !allowedTransition(c.Status, to) {
		return ErrIllegalTransition.with(fmt.Sprintf("%s: %s -> %s", key, c.Status, to))
	}
	if to == models.StatusClaimed && !team.Valid() {
		return ErrIllegalTransition.with(fmt.Sprintf("%s: claim without a team", key))
	}

	c.Status = to
	if to == models.StatusClaimed {
		c.ClaimedBy = team
	} else {
		c.ClaimedBy = ""
	}
	return nil
}

func allowedTransition(from, to models.CardStatus) bool {
	switch from {
	case models.StatusAvailable:
		return to == models.StatusHighlighted || to == models.StatusUnclaimed
	case models.StatusHighlighted:
		return to == models.StatusAvailable || to == models.StatusClaimed
	case models.StatusClaimed:
		return to == models.StatusAvailable
	default:
		return false
	}
}

// availableRemainder returns the keys of every Available card in pool order
func (p *Pool) availableRemainder() []string {
	var keys []string
	for _, c := range p.cards {
		if c.Status == models.StatusAvailable {
			keys = append(keys, c.Key)
		}
	}
	return keys
}
