package policy

// ComputeReturns returns the discounted return of each step of a
// segment with the argument rewards. The return following the last
// step is bootstrap if the segment is not terminal and 0 otherwise:
//
//	G_n = bootstrap * (1 - terminal)
//	G_i = r_i + γ G_{i+1}
func ComputeReturns(rewards []float64, gamma, bootstrap float64,
	terminal bool) []float64 {
	g := bootstrap
	if terminal {
		g = 0
	}

	returns := make([]float64, len(rewards))
	for i := len(rewards) - 1; i >= 0; i-- {
		g = rewards[i] + gamma*g
		returns[i] = g
	}
	return returns
}
