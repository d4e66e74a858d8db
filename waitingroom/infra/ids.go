package infra

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// SnowflakeIDs gera ids de pedido únicos e crescentes dentro do nó.
type SnowflakeIDs struct {
	node *snowflake.Node
}

func NewSnowflakeIDs(node int64) (*SnowflakeIDs, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &SnowflakeIDs{node: n}, nil
}

func (s *SnowflakeIDs) NextID() int64 { return s.node.Generate().Int64() }
