package domain

import (
	"errors"
	"testing"
)

func validPlan() *ShotPlan {
	return &ShotPlan{
		Seed: "seed",
		Shots: []Shot{
			{Index: 0, Type: ShotTypeHook, Role: ShotRoleProductHero},
			{Index: 1, Type: ShotTypeFeature, Role: ShotRoleInContext},
			{Index: 2, Type: ShotTypeProof, Role: ShotRoleHandledTransient},
			{Index: 3, Type: ShotTypeCTA, Role: ShotRoleNegativeSpace},
		},
	}
}

func TestShotPlanValidateAccepts(t *testing.T) {
	if err := validPlan().Validate(); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}
}

func TestShotPlanValidateRejects(t *testing.T) {
	cases := map[string]func(p *ShotPlan){
		"wrong count": func(p *ShotPlan) {
			p.Shots = p.Shots[:3]
		},
		"repeated role": func(p *ShotPlan) {
			p.Shots[1].Role = ShotRoleProductHero
		},
		"unknown role": func(p *ShotPlan) {
			p.Shots[3].Role = ShotRole("drone-flyover")
		},
		"transient slot displaced": func(p *ShotPlan) {
			p.Shots[2].Role = ShotRoleInContext
			p.Shots[1].Role = ShotRoleHandledTransient
		},
		"hook not first": func(p *ShotPlan) {
			p.Shots[0].Type = ShotTypeFeature
			p.Shots[1].Type = ShotTypeHook
		},
		"index mismatch": func(p *ShotPlan) {
			p.Shots[1].Index = 2
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validPlan()
			mutate(p)
			err := p.Validate()
			if !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("expected ErrInvalidPlan, got %v", err)
			}
		})
	}
}

func TestShotPlanValidateNil(t *testing.T) {
	var p *ShotPlan
	if err := p.Validate(); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan for nil plan, got %v", err)
	}
}

func TestAudioTypeQuotaTier(t *testing.T) {
	if got := AudioTypeMusic.QuotaTier(); got != QuotaTierPremium {
		t.Fatalf("music should draw premium, got %s", got)
	}
	if got := AudioTypeSpeech.QuotaTier(); got != QuotaTierStandard {
		t.Fatalf("speech should draw standard, got %s", got)
	}
	if got := AudioTypeNarration.QuotaTier(); got != QuotaTierStandard {
		t.Fatalf("narration should draw standard, got %s", got)
	}
}
