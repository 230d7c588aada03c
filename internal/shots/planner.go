package shots

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"monetiq/internal/domain"
)

// PlanSeed derives the seed for one planning attempt. The variant id and
// attempt number keep retries distinct; the timestamp keeps re-runs of the
// same attempt distinct.
func PlanSeed(variantID string, attempt int, now time.Time) string {
	return fmt.Sprintf("%s-attempt-%d-%d", variantID, attempt, now.UnixNano())
}

// BuildPlan derives a complete four-shot plan from the seed. The hook opens
// the sequence and the handled-transient role is pinned to its fixed slot;
// the remaining spatial roles are permuted deterministically by the seed, so
// the same seed always yields the same plan.
func BuildPlan(seed string, pack *domain.AdPack, variant *domain.Variant) *domain.ShotPlan {
	roles := assignRoles(seed)
	types := domain.ShotTypes()
	constraints := ReferenceConstraints(pack.ReferenceImageURLs)

	plan := &domain.ShotPlan{Seed: seed, Shots: make([]domain.Shot, domain.PlanShotCount)}
	for i := 0; i < domain.PlanShotCount; i++ {
		plan.Shots[i] = domain.Shot{
			Index:   i,
			Type:    types[i],
			Role:    roles[i],
			Context: shotContext(pack, variant, types[i], constraints),
		}
	}
	return plan
}

// assignRoles pins handled-transient to its slot and deals the remaining
// roles across the other slots in seed order.
func assignRoles(seed string) [domain.PlanShotCount]domain.ShotRole {
	free := []domain.ShotRole{
		domain.ShotRoleProductHero,
		domain.ShotRoleInContext,
		domain.ShotRoleNegativeSpace,
	}
	digest := sha256.Sum256([]byte(seed))

	var roles [domain.PlanShotCount]domain.ShotRole
	slot := 0
	for i := 0; i < domain.PlanShotCount; i++ {
		if i == domain.TransientShotIndex {
			roles[i] = domain.ShotRoleHandledTransient
			continue
		}
		pick := int(binary.BigEndian.Uint16(digest[slot*2:])) % len(free)
		roles[i] = free[pick]
		free = append(free[:pick], free[pick+1:]...)
		slot++
	}
	return roles
}

func shotContext(pack *domain.AdPack, variant *domain.Variant, t domain.ShotType, constraints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s.", pack.ProductName)
	if pack.Brief != "" {
		fmt.Fprintf(&b, " Brief: %s.", pack.Brief)
	}
	if variant.Angle != "" {
		fmt.Fprintf(&b, " Creative angle: %s.", variant.Angle)
	}
	switch t {
	case domain.ShotTypeHook:
		b.WriteString(" Open with an attention-grabbing first frame.")
	case domain.ShotTypeFeature:
		b.WriteString(" Highlight the product's defining feature.")
	case domain.ShotTypeProof:
		b.WriteString(" Show the product delivering its promise.")
	case domain.ShotTypeCTA:
		b.WriteString(" Close with space for a call-to-action overlay.")
	}
	for _, c := range constraints {
		b.WriteString(" ")
		b.WriteString(c)
		b.WriteString(".")
	}
	return b.String()
}

// Prompt renders the generation prompt for one planned shot.
func Prompt(shot domain.Shot) string {
	return fmt.Sprintf("%s Composition: %s framing for a %s shot.", shot.Context, shot.Role, shot.Type)
}
