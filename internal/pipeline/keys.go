package pipeline

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// IDGenerator hands out unique songplay ids.
type IDGenerator interface {
	Next() int64
}

type snowflakeIDs struct{ node *snowflake.Node }

// NewSnowflakeIDs returns a generator backed by a snowflake node. Runs that
// may overlap in time should use different node numbers (0-1023).
func NewSnowflakeIDs(node int64) (IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return snowflakeIDs{node: n}, nil
}

func (s snowflakeIDs) Next() int64 { return s.node.Generate().Int64() }

// FoldKey normalizes a join key for loose matching: NFKC, Unicode case
// folding, and collapsed whitespace.
func FoldKey(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}
