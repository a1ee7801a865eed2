package engine

import (
	"fmt"

	"github.com/roach88/vnengine/internal/script"
)

// evalCond evaluates a branch condition. Missing flags read as false and
// missing vars as 0.
func evalCond(c script.Cond, flags map[string]bool, vars map[string]int64) (bool, error) {
	switch cd := c.(type) {
	case script.FlagCond:
		return flags[cd.Key] == cd.IsSet, nil
	case script.VarCmp:
		return cd.Op.Compare(vars[cd.Key], cd.Value)
	default:
		return false, fmt.Errorf("unhandled condition type %T", c)
	}
}
