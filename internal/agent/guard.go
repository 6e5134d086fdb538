package agent

// DefaultMaxSteps is the step limit used when none is configured
const DefaultMaxSteps = 10

// StepGuard bounds the number of reasoning steps in a turn. On the last permitted step the model is asked for an
// answer with tool calls forbidden, so every turn ends within MaxSteps model calls
type StepGuard struct {
	MaxSteps int
}

// IsLastStep reports whether step (1-based) is the final step the limit permits
func (g StepGuard) IsLastStep(step int) bool {
	return step >= g.maxSteps()
}

func (g StepGuard) maxSteps() int {
	if g.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return g.MaxSteps
}
