package sandbox

import "context"

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, env *Env, script string) error

// Run calls f.
func (f StrategyFunc) Run(ctx context.Context, env *Env, script string) error {
	return f(ctx, env, script)
}

var (
	_ Strategy = (*Pool)(nil)
	_ Strategy = (*Runtime)(nil)
	_ Strategy = StrategyFunc(nil)
)
