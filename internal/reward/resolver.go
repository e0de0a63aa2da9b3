// Package reward turns reward specifications into concrete loot bundles.
package reward

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"github.com/terra-clan/dungeon-engine/internal/models"
)

// Source yields uniform draws in [0, 1)
type Source interface {
	Float64() float64
}

// Resolver materializes reward specs. It is not safe for concurrent use.
type Resolver struct {
	src Source
}

// NewResolver creates a resolver drawing from src.
// A nil src uses a math/rand generator seeded from crypto/rand.
func NewResolver(src Source) *Resolver {
	if src == nil {
		src = rand.New(rand.NewSource(newSeed()))
	}
	return &Resolver{src: src}
}

// NewSeededResolver creates a resolver whose draws are reproducible for a given seed
func NewSeededResolver(seed int64) *Resolver {
	return &Resolver{src: rand.New(rand.NewSource(seed))}
}

// Calculate resolves spec into a bundle.
//
// Base exp and gold are always granted. Every item entry is drawn independently
// against its drop rate: a rate of 0 or less never drops, 1 or more always
// drops. On first clear the bonus exp, gold and every bonus item are added
// without any draw.
func (r *Resolver) Calculate(spec models.RewardSpec, firstClear bool) models.RewardBundle {
	bundle := models.RewardBundle{
		Exp:        spec.Exp,
		Gold:       spec.Gold,
		Items:      make([]models.ItemGrant, 0, len(spec.Items)+len(spec.BonusItems)),
		FirstClear: firstClear,
	}

	for _, item := range spec.Items {
		if r.drops(item.DropRate) {
			bundle.Items = append(bundle.Items, models.ItemGrant{
				ItemID:   item.ItemID,
				Quantity: item.Quantity,
			})
		}
	}

	if firstClear {
		bundle.Exp += spec.BonusExp
		bundle.Gold += spec.BonusGold
		bundle.Items = append(bundle.Items, spec.BonusItems...)
	}

	return bundle
}

func (r *Resolver) drops(rate float64) bool {
	switch {
	case rate <= 0:
		return false
	case rate >= 1:
		return true
	default:
		return r.src.Float64() < rate
	}
}

func newSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
