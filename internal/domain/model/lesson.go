package model

// Lesson is the read-only slice of lesson content the mentor needs.
type Lesson struct {
	ID                 string             `json:"id"`
	Slug               string             `json:"slug"`
	Title              string             `json:"title"`
	Track              Track              `json:"track"`
	Difficulty         Difficulty         `json:"difficulty"`
	Summary            string             `json:"summary"`
	LearningObjectives []string           `json:"learning_objectives"`
	EmbeddedQuestions  []EmbeddedQuestion `json:"-"`
}

// EmbeddedQuestion is a check-yourself question inside a lesson. The expected
// answer must never be restated by the mentor.
type EmbeddedQuestion struct {
	Prompt         string `json:"prompt"`
	ExpectedAnswer string `json:"-"`
}
