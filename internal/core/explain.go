package core

import (
	"context"
	"database/sql"

	"github.com/coregx/quarry/internal/analyzer"
)

// Plan is the execution plan returned by Explain.
type Plan = analyzer.Plan

// Explain compiles the SELECT and asks the database for its plan. The
// statement itself is not run.
func (b *Builder) Explain(ctx context.Context) (*Plan, error) {
	if err := b.requireDB(); err != nil {
		return nil, err
	}
	q, err := b.SelectSQL()
	if err != nil {
		return nil, err
	}
	return b.explain(ctx, q)
}

func (b *Builder) explain(ctx context.Context, q *Query) (*Plan, error) {
	driver := b.dialect.Name()
	stmt, err := analyzer.Statement(driver, q.sql)
	if err != nil {
		return nil, err
	}

	var plan *Plan
	err = b.db.manager.Query(ctx, stmt, q.binds, b.master, func(rows *sql.Rows) error {
		var err error
		plan, err = analyzer.Read(driver, rows)
		return err
	})
	return plan, err
}

// logPlan explains q when the connection has Debug and Explain set. Plans
// with warnings are logged at warn level. Failures only produce a log line.
func (b *Builder) logPlan(ctx context.Context, q *Query) {
	cfg := b.db.manager.Config()
	if !cfg.Debug || !cfg.Explain {
		return
	}
	plan, err := b.explain(ctx, q)
	if err != nil {
		b.db.logger.Warn("quarry explain failed", "sql", q.sql, "error", err)
		return
	}
	if w := plan.Warnings(); len(w) > 0 {
		b.db.logger.Warn("quarry explain", "sql", q.sql, "warnings", w, "index", plan.IndexName)
		return
	}
	b.db.logger.Debug("quarry explain", "sql", q.sql, "index", plan.IndexName, "rows", plan.EstimatedRows)
}
