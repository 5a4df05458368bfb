package lexicon

import "github.com/cloo-solutions/nutrirag/internal/domain"

// Singular stems are used where the plural is a superstring ("vitamin"
// covers "vitamins"), since matching is by substring.
var foodTerms = []string{
	"food", "nutrition", "protein", "carb", "fat", "vitamin", "mineral",
	"diet", "weight", "calories", "meal", "snack", "breakfast", "lunch",
	"dinner", "recipe", "ingredient", "healthy", "macro", "micro",
	"supplement", "fiber", "sugar", "cholesterol", "hydration",
}

var activityTerms = []string{
	"exercise", "calories burned", "cycling", "walking", "running",
	"jogging", "weight", "workout", "sport", "lbs", "activity", "activities",
	"training", "strength", "cardio", "flexibility", "endurance", "hiit",
	"yoga", "pilates", "swimming", "gym", "stretching", "steps", "movement",
	"fitness",
}

// Default returns the built-in food and activity lexicon
func Default() *Lexicon {
	return MustNew([]Entry{
		{Domain: domain.DomainFood, Label: "FOOD DATA", Terms: foodTerms},
		{Domain: domain.DomainActivity, Label: "ACTIVITY DATA", Terms: activityTerms},
	})
}
