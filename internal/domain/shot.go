package domain

import "fmt"

// ShotType is the narrative slot a shot fills within a four-shot ad sequence.
type ShotType string

const (
	ShotTypeHook    ShotType = "hook"
	ShotTypeFeature ShotType = "feature"
	ShotTypeProof   ShotType = "proof"
	ShotTypeCTA     ShotType = "cta"
)

// ShotRole constrains how a generated shot must visually compose its subject.
// Roles within one plan are mutually exclusive.
type ShotRole string

const (
	ShotRoleProductHero      ShotRole = "product-hero"
	ShotRoleHandledTransient ShotRole = "handled-transient"
	ShotRoleInContext        ShotRole = "in-context"
	ShotRoleNegativeSpace    ShotRole = "negative-space"
)

// PlanShotCount is the fixed number of shots per plan.
const PlanShotCount = 4

// TransientShotIndex is the position that must always carry the
// handled-transient role.
const TransientShotIndex = 2

// ShotTypes returns plan order: the hook always opens the sequence.
func ShotTypes() []ShotType {
	return []ShotType{ShotTypeHook, ShotTypeFeature, ShotTypeProof, ShotTypeCTA}
}

// ShotRoles lists the closed legal role set.
func ShotRoles() []ShotRole {
	return []ShotRole{
		ShotRoleProductHero,
		ShotRoleHandledTransient,
		ShotRoleInContext,
		ShotRoleNegativeSpace,
	}
}

func (r ShotRole) Valid() bool {
	switch r {
	case ShotRoleProductHero, ShotRoleHandledTransient, ShotRoleInContext, ShotRoleNegativeSpace:
		return true
	}
	return false
}

// Shot is one planned frame within a four-shot sequence.
type Shot struct {
	Index   int
	Type    ShotType
	Role    ShotRole
	Context string
}

// ShotPlan is a deterministic spatial plan for one variant attempt. Plans are
// immutable once accepted; any shot failure other than the hook regenerates
// the plan wholesale on the next outer attempt.
type ShotPlan struct {
	Seed  string
	Shots []Shot
}

// Validate enforces the plan's structural invariants before any generation
// call is attempted: exactly PlanShotCount shots in type order with the hook
// first, every spatial role drawn from the legal set with no repeats, and the
// handled-transient role fixed at TransientShotIndex.
func (p *ShotPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil plan", ErrInvalidPlan)
	}
	if len(p.Shots) != PlanShotCount {
		return fmt.Errorf("%w: expected %d shots, got %d", ErrInvalidPlan, PlanShotCount, len(p.Shots))
	}
	types := ShotTypes()
	seen := make(map[ShotRole]struct{}, PlanShotCount)
	for i, shot := range p.Shots {
		if shot.Index != i {
			return fmt.Errorf("%w: shot %d carries index %d", ErrInvalidPlan, i, shot.Index)
		}
		if shot.Type != types[i] {
			return fmt.Errorf("%w: shot %d must be type %q, got %q", ErrInvalidPlan, i, types[i], shot.Type)
		}
		if !shot.Role.Valid() {
			return fmt.Errorf("%w: unknown role %q at shot %d", ErrInvalidPlan, shot.Role, i)
		}
		if _, dup := seen[shot.Role]; dup {
			return fmt.Errorf("%w: role %q repeated", ErrInvalidPlan, shot.Role)
		}
		seen[shot.Role] = struct{}{}
	}
	if p.Shots[TransientShotIndex].Role != ShotRoleHandledTransient {
		return fmt.Errorf("%w: shot %d must be %q, got %q",
			ErrInvalidPlan, TransientShotIndex, ShotRoleHandledTransient, p.Shots[TransientShotIndex].Role)
	}
	return nil
}
