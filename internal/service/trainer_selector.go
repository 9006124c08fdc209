package service

import (
	"math/rand/v2"

	"alcyxob/fitness-coach/internal/domain"
)

// TrainerSelector chooses which trainer a new premium member is assigned to.
type TrainerSelector interface {
	// Pick returns false when no trainer can be chosen.
	Pick(trainers []domain.User) (domain.User, bool)
}

// RandomTrainerSelector picks uniformly at random.
type RandomTrainerSelector struct{}

func (RandomTrainerSelector) Pick(trainers []domain.User) (domain.User, bool) {
	if len(trainers) == 0 {
		return domain.User{}, false
	}
	return trainers[rand.IntN(len(trainers))], true
}
