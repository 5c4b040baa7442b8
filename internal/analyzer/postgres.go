package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

type postgresRoot struct {
	Plan postgresNode `json:"Plan"`
}

type postgresNode struct {
	NodeType  string         `json:"Node Type"` // Seq Scan, Index Scan, Sort, HashAggregate...
	IndexName string         `json:"Index Name"`
	TotalCost float64        `json:"Total Cost"`
	PlanRows  int64          `json:"Plan Rows"`
	SortSpace string         `json:"Sort Space Type"` // Disk when the sort spilled
	Plans     []postgresNode `json:"Plans"`
}

// ParsePostgres reads the JSON array returned by EXPLAIN (FORMAT JSON).
func ParsePostgres(raw string) (*Plan, error) {
	var roots []postgresRoot
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("analyzer: decode postgres plan: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("analyzer: empty EXPLAIN output")
	}

	top := roots[0].Plan
	p := &Plan{
		Driver:        "postgres",
		Cost:          top.TotalCost,
		EstimatedRows: top.PlanRows,
		Raw:           raw,
	}
	p.postgresNode(&top)
	return p, nil
}

func (p *Plan) postgresNode(n *postgresNode) {
	switch {
	case strings.Contains(n.NodeType, "Index Scan"), strings.Contains(n.NodeType, "Index Only Scan"):
		p.useIndex(n.IndexName)
	case n.NodeType == "Seq Scan":
		p.FullScan = true
	case n.NodeType == "Sort":
		p.Filesort = true
		if n.SortSpace == "Disk" {
			p.TempTable = true
		}
	case n.NodeType == "Materialize":
		p.TempTable = true
	}
	for i := range n.Plans {
		p.postgresNode(&n.Plans[i])
	}
}
