package dataset

import (
	"context"
	"fmt"
)

// seedCases is the built-in validation set: labeled answer pairs across
// the engineering and academic domains, plus one poor answer to keep the
// sweep honest at the low end of the scale.
var seedCases = []Case{
	{
		Domain:        "CSE",
		Question:      "Explain how binary search works.",
		ModelAnswer:   "Binary search is an algorithm that repeatedly divides a sorted array in half, comparing the middle element with the target until the value is found.",
		StudentAnswer: "Binary search is an algorithm that keeps splitting a sorted array in half and compares the middle element with the target until it finds the value.",
		ExpectedScore: 5.0,
		KeyConcepts:   ConceptList{"algorithm", "array"},
	},
	{
		Domain:        "CSE",
		Question:      "Explain how binary search works.",
		ModelAnswer:   "Binary search is an algorithm that repeatedly divides a sorted array in half, comparing the middle element with the target until the value is found.",
		StudentAnswer: "It looks through items one by one until it finds the right one.",
		ExpectedScore: 1.0,
		KeyConcepts:   ConceptList{"algorithm", "array"},
		Notes:         "describes linear search instead",
	},
	{
		Domain:        "ECE",
		Question:      "What does an amplifier do in a circuit?",
		ModelAnswer:   "An amplifier increases the amplitude of a signal in a circuit, raising a weak input voltage to a stronger output.",
		StudentAnswer: "An amplifier boosts the amplitude of a weak signal in a circuit so the output voltage is stronger.",
		ExpectedScore: 5.0,
		KeyConcepts:   ConceptList{"amplifier", "signal", "circuit", "voltage"},
	},
	{
		Domain:        "EEE",
		Question:      "What is the purpose of a transformer?",
		ModelAnswer:   "A transformer transfers electrical energy between circuits and steps voltage up or down through electromagnetic induction.",
		StudentAnswer: "A transformer changes voltage levels, moving electrical energy from one circuit to another by induction.",
		ExpectedScore: 4.5,
		KeyConcepts:   ConceptList{"transformer", "electrical", "energy", "voltage"},
	},
	{
		Domain:        "Mechanical",
		Question:      "State Newton's second law of motion.",
		ModelAnswer:   "The force acting on a body equals its mass times its acceleration, so motion changes in proportion to the applied force.",
		StudentAnswer: "Force equals mass times acceleration, meaning the motion of a body changes according to the force applied.",
		ExpectedScore: 5.0,
		KeyConcepts:   ConceptList{"force", "motion"},
	},
	{
		Domain:        "Civil",
		Question:      "Why is steel added to concrete beams?",
		ModelAnswer:   "Steel reinforcement carries the tensile load that concrete cannot, so a reinforced beam resists both compression and tension.",
		StudentAnswer: "Steel takes the tensile load in the beam because concrete alone is weak in tension.",
		ExpectedScore: 4.0,
		KeyConcepts:   ConceptList{"steel", "concrete", "beam", "load"},
	},
	{
		Domain:        "mathematics",
		Question:      "How do you solve a linear equation?",
		ModelAnswer:   "Isolate the variable: apply the same operation to both sides of the equation until the unknown stands alone, then calculate its value.",
		StudentAnswer: "You solve the equation by doing the same operation on both sides until the variable is alone, then calculate the answer.",
		ExpectedScore: 4.5,
		KeyConcepts:   ConceptList{"equation", "solve", "calculate"},
	},
	{
		Domain:        "science",
		Question:      "What is the role of a hypothesis in an experiment?",
		ModelAnswer:   "A hypothesis is a testable prediction that the experiment is designed to support or reject through analysis of the collected data.",
		StudentAnswer: "A hypothesis is a prediction you test with the experiment and then check through analysis of the results.",
		ExpectedScore: 4.5,
		KeyConcepts:   ConceptList{"hypothesis", "experiment", "analysis"},
	},
}

// Seed inserts the built-in validation set when the store is empty.
// Calling it on a populated store is a no-op.
func (s *Store) Seed(ctx context.Context) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.Total > 0 {
		return nil
	}

	for _, c := range seedCases {
		if _, err := s.AddCase(ctx, c); err != nil {
			return fmt.Errorf("seed case (%s): %w", c.Domain, err)
		}
	}
	s.logger.Info("seeded validation dataset", "cases", len(seedCases))
	return nil
}
