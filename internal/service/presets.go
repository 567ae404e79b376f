package service

import "aig-pipeline-be/pkg/pipeline"

// constructPresets are ready-made construct definitions for common scales.
// A submission naming a preset inherits any field it left blank.
var constructPresets = map[string]pipeline.ConstructInput{
	"conscientiousness": {
		ConstructName:       "Conscientiousness",
		ConstructDefinition: "The tendency to be organized, responsible, hardworking, and goal-directed, and to adhere to norms and rules.",
		DimensionInfo:       "Target: conscientiousness. Orbiting constructs: (1) neuroticism (emotional instability, worry), (2) agreeableness (cooperation, warmth toward others).",
	},
	"self_efficacy": {
		ConstructName:       "General Self-Efficacy",
		ConstructDefinition: "The belief in one's ability to organize and execute the courses of action required to manage prospective situations and reach goals.",
		DimensionInfo:       "Target: general self-efficacy. Orbiting constructs: (1) self-esteem (global evaluation of self-worth), (2) optimism (generalized positive outcome expectancy).",
	},
	"grit": {
		ConstructName:       "Grit",
		ConstructDefinition: "Perseverance and passion for long-term goals, sustained over years despite failure, adversity, and plateaus in progress.",
		DimensionInfo:       "Target: grit. Orbiting constructs: (1) conscientiousness (general orderliness and dutifulness), (2) need for achievement (drive for immediate task success).",
	},
	"work_engagement": {
		ConstructName:       "Work Engagement",
		ConstructDefinition: "A positive, fulfilling work-related state of mind characterized by vigor, dedication, and absorption in one's work.",
		DimensionInfo:       "Target: work engagement. Orbiting constructs: (1) job satisfaction (evaluative judgment about one's job), (2) workaholism (compulsive inner drive to work excessively).",
	},
}

// PresetNames lists the available construct presets.
func PresetNames() []string {
	names := make([]string, 0, len(constructPresets))
	for name := range constructPresets {
		names = append(names, name)
	}
	return names
}
