package agents

// Structured JSON outputs expected from each agent. Validation tags are
// enforced by the executor's structured-output repair loop.

type researchOutput struct {
	ResearchSummary string   `json:"research_summary" validate:"required,min=20"`
	KeyPoints       []string `json:"key_points"`
	Sources         []string `json:"sources"`
}

type itemOut struct {
	ItemNumber int    `json:"item_number"`
	Stem       string `json:"stem" validate:"required,min=5"`
	Rationale  string `json:"rationale"`
}

type itemWriterOutput struct {
	Items         []itemOut `json:"items" validate:"required,min=1,dive"`
	ResponseScale string    `json:"response_scale"`
}

type contentReviewItem struct {
	ItemNumber     int    `json:"item_number"`
	TargetRating   int    `json:"target_rating"`
	Orbiting1      int    `json:"orbiting_1_rating"`
	Orbiting2      int    `json:"orbiting_2_rating"`
	Feedback       string `json:"feedback"`
}

type contentReviewerOutput struct {
	Items          []contentReviewItem `json:"items"`
	OverallSummary string              `json:"overall_summary"`
}

type linguisticReviewItem struct {
	ItemNumber           int    `json:"item_number"`
	GrammaticalAccuracy  int    `json:"grammatical_accuracy"`
	EaseOfUnderstanding  int    `json:"ease_of_understanding"`
	NegativeLanguageFree int    `json:"negative_language_free"`
	ClarityDirectness    int    `json:"clarity_directness"`
	Feedback             string `json:"feedback"`
}

type linguisticReviewerOutput struct {
	Items          []linguisticReviewItem `json:"items"`
	OverallSummary string                 `json:"overall_summary"`
}

type biasReviewItem struct {
	ItemNumber int    `json:"item_number"`
	Score      int    `json:"score"`
	Feedback   string `json:"feedback"`
}

type biasReviewerOutput struct {
	Items          []biasReviewItem `json:"items"`
	OverallSummary string           `json:"overall_summary"`
}

type moderatorOutput struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVE REVISE"`
	Feedback string `json:"feedback" validate:"required"`
	Critical bool   `json:"critical"`
	Keep     []int  `json:"keep"`
	Revise   []int  `json:"revise"`
	Discard  []int  `json:"discard"`
}

// InjectionVerdict is the structured result of one injection-check layer.
type InjectionVerdict struct {
	Verdict    string  `json:"verdict" validate:"required,oneof=PASS STOP"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Reason     string  `json:"reason"`
}
