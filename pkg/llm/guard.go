package llm

import (
	"context"

	"github.com/WessleyAI/wessley-advisor/pkg/resilience"
)

// Guard routes every call through breaker. While the breaker is open calls
// fail immediately with resilience.ErrCircuitOpen.
func Guard(gen Generator, breaker *resilience.Breaker) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		var out string
		err := breaker.Call(ctx, func(ctx context.Context) error {
			var err error
			out, err = gen.Generate(ctx, req)
			return err
		})
		return out, err
	})
}
