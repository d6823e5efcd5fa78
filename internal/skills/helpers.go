// Package skills holds the analysis steps registered with the skill
// registry.
package skills

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/skill"
)

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ptr[T any](v T) *T { return &v }

// formatUSD renders whole dollars with thousands separators, e.g. $12,345.
func formatUSD(v float64) string {
	neg := v < 0
	digits := strconv.FormatInt(int64(math.Round(math.Abs(v))), 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// checkCtx stops a skill between units of work once its job context ends.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// previous returns the typed output of an earlier step when present.
func previous[T any](sc *skill.Context, name skill.Name) (T, bool) {
	var zero T
	r, ok := sc.Output(name)
	if !ok {
		return zero, false
	}
	v, ok := r.Data.(T)
	return v, ok
}
