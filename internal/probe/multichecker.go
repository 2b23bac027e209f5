package probe

import "context"

type MultiChecker struct {
	Probes []Probe
}

func NewMultiChecker(probes ...Probe) *MultiChecker {
	return &MultiChecker{Probes: probes}
}

// Run executes every probe in order; a nil checker is skipped.
func (m *MultiChecker) Run(ctx context.Context) []CheckResult {
	results := make([]CheckResult, 0, len(m.Probes))
	for _, p := range m.Probes {
		if p.Checker == nil {
			continue
		}
		results = append(results, p.Checker.Check(ctx, p.Target))
	}
	return results
}
