package services

import (
	"context"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/saeid-a/coachmatch/internal/models"
)

type MatchmakingService struct {
	trainerRepo TrainerLister
}

func NewMatchmakingService(trainerRepo TrainerLister) *MatchmakingService {
	return &MatchmakingService{trainerRepo: trainerRepo}
}

// RankTrainers scores every trainer against a free-text training goal and
// returns the best limit of them. Trainers listed in exclude are skipped.
func (s *MatchmakingService) RankTrainers(
	ctx context.Context,
	trainingGoal string,
	exclude []string,
	limit int,
) ([]models.TrainerMatch, error) {
	trainers, err := s.trainerRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	goals := goalAliases(trainingGoal)
	matched := make([]models.TrainerMatch, 0, len(trainers))
	for _, trainer := range trainers {
		if slices.Contains(exclude, trainer.UserID) {
			continue
		}
		matched = append(matched, models.TrainerMatch{
			TrainerProfile: trainer,
			MatchScore:     calculateMatchScore(goals, &trainer),
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].MatchScore == matched[j].MatchScore {
			return floatValue(matched[i].Rating) > floatValue(matched[j].Rating)
		}
		return matched[i].MatchScore > matched[j].MatchScore
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func calculateMatchScore(goals map[string][]string, trainer *models.TrainerProfile) int {
	score := 0
	specs := normalizeValues(trainer.Specializations)

	for _, aliases := range goals {
		for _, alias := range aliases {
			if _, ok := specs[alias]; ok {
				score += 40
				break
			}
		}
	}

	if floatValue(trainer.Rating) > 4.0 {
		score += 20
	}
	if trainer.ExperienceYears > 3 {
		score += 15
	}
	if len(trainer.Certifications) > 0 {
		score += 10
	}

	return score
}

var goalPhrases = []struct {
	key      string
	triggers []string
	aliases  []string
}{
	{"weight_loss", []string{"weight_loss", "fat_loss", "lose_weight", "slim"}, []string{"weight_loss", "fat_loss"}},
	{"muscle_gain", []string{"muscle_gain", "muscle", "bulk", "bodybuilding"}, []string{"muscle_gain", "bodybuilding", "strength_training"}},
	{"strength", []string{"strength", "powerlifting"}, []string{"strength", "strength_training"}},
	{"flexibility", []string{"flexibility", "mobility", "stretch", "yoga"}, []string{"flexibility", "mobility", "yoga"}},
	{"endurance", []string{"endurance", "cardio", "running", "marathon"}, []string{"endurance", "cardio", "running"}},
	{"rehabilitation", []string{"rehab", "injury", "recovery"}, []string{"rehabilitation", "physiotherapy"}},
}

// goalAliases reads a free-text goal. Known phrases expand to the
// specialisations that serve them; any other word longer than three letters
// is matched literally.
func goalAliases(trainingGoal string) map[string][]string {
	text := normalize(trainingGoal)
	mapped := make(map[string][]string)
	if text == "" {
		return mapped
	}

	covered := make(map[string]struct{})
	for _, phrase := range goalPhrases {
		for _, trigger := range phrase.triggers {
			if strings.Contains(text, trigger) {
				mapped[phrase.key] = phrase.aliases
				for _, word := range append(slices.Clone(phrase.triggers), phrase.aliases...) {
					covered[word] = struct{}{}
				}
				break
			}
		}
	}

	for _, word := range strings.FieldsFunc(strings.ToLower(trainingGoal), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(word) <= 3 {
			continue
		}
		if _, ok := covered[word]; ok {
			continue
		}
		mapped[word] = []string{word}
	}

	return mapped
}

func normalizeValues(values []string) map[string]struct{} {
	normalized := make(map[string]struct{})
	for _, value := range values {
		if key := normalize(value); key != "" {
			normalized[key] = struct{}{}
		}
	}
	return normalized
}

func normalize(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	value = strings.ReplaceAll(value, " ", "_")
	value = strings.ReplaceAll(value, "-", "_")
	return value
}

func floatValue(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
