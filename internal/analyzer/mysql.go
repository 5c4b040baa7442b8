package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// EXPLAIN FORMAT=JSON output; only the fields read by ParseMySQL.
type mysqlRoot struct {
	QueryBlock mysqlBlock `json:"query_block"`
}

type mysqlBlock struct {
	CostInfo   mysqlCost     `json:"cost_info"`
	Table      *mysqlTable   `json:"table"`
	NestedLoop []mysqlNested `json:"nested_loop"`
	Grouping   *mysqlOp      `json:"grouping_operation"`
	Ordering   *mysqlOp      `json:"ordering_operation"`
	Duplicates *mysqlOp      `json:"duplicates_removal"`
}

type mysqlNested struct {
	Table *mysqlTable `json:"table"`
}

type mysqlOp struct {
	UsingTemporaryTable bool          `json:"using_temporary_table"`
	UsingFilesort       bool          `json:"using_filesort"`
	Table               *mysqlTable   `json:"table"`
	NestedLoop          []mysqlNested `json:"nested_loop"`
	Grouping            *mysqlOp      `json:"grouping_operation"`
	Duplicates          *mysqlOp      `json:"duplicates_removal"`
}

type mysqlTable struct {
	TableName           string `json:"table_name"`
	AccessType          string `json:"access_type"` // ALL, index, range, ref, eq_ref, const, system
	Key                 string `json:"key"`
	RowsExaminedPerScan int64  `json:"rows_examined_per_scan"`
}

type mysqlCost struct {
	QueryCost string `json:"query_cost"`
}

// ParseMySQL reads the JSON document returned by EXPLAIN FORMAT=JSON.
func ParseMySQL(raw string) (*Plan, error) {
	var root mysqlRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("analyzer: decode mysql plan: %w", err)
	}

	p := &Plan{Driver: "mysql", Raw: raw}
	p.Cost = cast.ToFloat64(root.QueryBlock.CostInfo.QueryCost)

	qb := root.QueryBlock
	p.mysqlTable(qb.Table)
	p.mysqlNested(qb.NestedLoop)
	p.mysqlOp(qb.Grouping)
	p.mysqlOp(qb.Ordering)
	p.mysqlOp(qb.Duplicates)
	return p, nil
}

func (p *Plan) mysqlOp(op *mysqlOp) {
	if op == nil {
		return
	}
	p.Filesort = p.Filesort || op.UsingFilesort
	p.TempTable = p.TempTable || op.UsingTemporaryTable
	p.mysqlTable(op.Table)
	p.mysqlNested(op.NestedLoop)
	p.mysqlOp(op.Grouping)
	p.mysqlOp(op.Duplicates)
}

func (p *Plan) mysqlNested(loop []mysqlNested) {
	for _, n := range loop {
		p.mysqlTable(n.Table)
	}
}

func (p *Plan) mysqlTable(t *mysqlTable) {
	if t == nil {
		return
	}
	if t.Key != "" {
		p.useIndex(t.Key)
	}
	if t.AccessType == "ALL" {
		p.FullScan = true
	}
	p.EstimatedRows += t.RowsExaminedPerScan
}
