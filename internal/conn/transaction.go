package conn

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

func savepoint(level int) string {
	return "trans" + strconv.Itoa(level)
}

// Level returns the transaction nesting depth, 0 outside a transaction.
func (m *Manager) Level() int {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.level
}

// InTransaction reports whether a transaction is active.
func (m *Manager) InTransaction() bool {
	return m.Level() > 0
}

// StartTrans opens a transaction on the master, or a savepoint named
// trans<level> when one is already active. Dialects without savepoints only
// count the nesting.
func (m *Manager) StartTrans(ctx context.Context) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if m.level > 0 {
		next := m.level + 1
		if m.dialect.SupportsSavepoints() {
			stmt := "SAVEPOINT " + savepoint(next)
			if _, err := m.tx.ExecContext(ctx, stmt); err != nil {
				return &StatementError{SQL: stmt, Err: err}
			}
		}
		m.level = next
		m.logTx("SAVEPOINT", next)
		return nil
	}

	h, err := m.initConnect(ctx, true)
	if err != nil {
		return err
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil && m.cfg.BreakReconnect && IsBrokenConnection(err, m.cfg.BreakMatchStr) {
		m.logger.Warn("quarry reconnecting before transaction", "error", err)
		m.stats.retries.Add(1)
		m.reconnect(h)
		if h, err = m.initConnect(ctx, true); err != nil {
			return err
		}
		tx, err = h.db.BeginTx(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("quarry: begin transaction: %w", err)
	}

	m.tx, m.txHandle, m.level = tx, h, 1
	m.stats.transactions.Add(1)
	m.logTx("BEGIN", 1)
	return nil
}

// Commit commits the outermost transaction. Inner levels only decrement the
// depth; their work becomes durable with the outermost commit.
func (m *Manager) Commit(ctx context.Context) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	switch {
	case m.level == 0:
		return ErrNoTransaction
	case m.level > 1:
		m.level--
		return nil
	}

	err := m.tx.Commit()
	m.tx, m.txHandle, m.level = nil, nil, 0
	m.logTx("COMMIT", 1)
	if err != nil {
		return fmt.Errorf("quarry: commit: %w", err)
	}
	return nil
}

// Rollback rolls back the outermost transaction, or the innermost savepoint
// when nested. The depth is decremented even when the rollback fails.
func (m *Manager) Rollback(ctx context.Context) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	switch {
	case m.level == 0:
		return ErrNoTransaction
	case m.level > 1:
		level := m.level
		m.level--
		m.logTx("ROLLBACK TO SAVEPOINT", level)
		if !m.dialect.SupportsSavepoints() {
			return nil
		}
		stmt := "ROLLBACK TO SAVEPOINT " + savepoint(level)
		if _, err := m.tx.ExecContext(ctx, stmt); err != nil {
			return &StatementError{SQL: stmt, Err: err}
		}
		return nil
	}

	err := m.tx.Rollback()
	m.tx, m.txHandle, m.level = nil, nil, 0
	m.logTx("ROLLBACK", 1)
	if err != nil {
		return fmt.Errorf("quarry: rollback: %w", err)
	}
	return nil
}

// Transaction runs fn inside StartTrans/Commit. An error from fn rolls back
// and is returned; a panic rolls back and is re-raised.
func (m *Manager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.StartTrans(ctx); err != nil {
		return err
	}

	settled := false
	defer func() {
		if settled {
			return
		}
		if p := recover(); p != nil {
			_ = m.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		settled = true
		if rbErr := m.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	settled = true
	return m.Commit(ctx)
}

func (m *Manager) logTx(action string, level int) {
	if m.cfg.Debug {
		m.logger.Debug("quarry transaction", "action", action, "level", level)
	}
}
