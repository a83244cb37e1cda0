package migration

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Runner plans and executes migrations against one database.
type Runner struct {
	exec      Executor
	history   *History
	validator *Validator
	rollback  *RollbackGenerator
	lock      *Lock
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistoryTable stores history in table instead of DefaultHistoryTable.
func WithHistoryTable(table string) Option {
	return func(r *Runner) {
		r.history = NewHistory(table)
		r.validator = NewValidator(r.history)
	}
}

// WithLock holds lock while a plan executes.
func WithLock(lock *Lock) Option {
	return func(r *Runner) {
		r.lock = lock
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a runner using exec for every statement.
func NewRunner(exec Executor, opts ...Option) *Runner {
	history := NewHistory(DefaultHistoryTable)
	r := &Runner{
		exec:      exec,
		history:   history,
		validator: NewValidator(history),
		rollback:  NewRollbackGenerator(),
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns the runner's history. It is empty until Load.
func (r *Runner) History() *History {
	return r.history
}

// Load creates the history table if needed and reads it.
func (r *Runner) Load(ctx context.Context) error {
	if err := r.history.Ensure(ctx, r.exec); err != nil {
		return err
	}
	return r.history.Load(ctx, r.exec)
}

// Validate checks migrations against the loaded history.
func (r *Runner) Validate(migrations []*Migration) *ValidationResult {
	return r.validator.Validate(migrations)
}

// Plan returns the pending migrations in ID order. It fails with every
// conflict when validation does not pass.
func (r *Runner) Plan(migrations []*Migration) (*Plan, error) {
	result := r.validator.Validate(migrations)
	if !result.Valid {
		return nil, ErrConflict(result.Conflicts)
	}

	plan := &Plan{Direction: Up}
	for _, m := range sorted(migrations) {
		if !r.history.IsApplied(m.ID) {
			plan.Migrations = append(plan.Migrations, m)
		}
	}
	return plan, nil
}

// RollbackPlan returns the applied migrations newer than or equal to target,
// newest first. An empty target rolls back the last applied migration only.
func (r *Runner) RollbackPlan(migrations []*Migration, target string) (*Plan, error) {
	applied := r.history.Applied()
	if len(applied) == 0 {
		return &Plan{Direction: Down}, nil
	}
	if target == "" {
		target = applied[len(applied)-1]
	}
	if !r.history.IsApplied(target) {
		return nil, ErrNotFound(target)
	}

	known := make(map[string]*Migration, len(migrations))
	for _, m := range migrations {
		known[m.ID] = m
	}

	plan := &Plan{Direction: Down}
	for i := len(applied) - 1; i >= 0 && applied[i] >= target; i-- {
		m, ok := known[applied[i]]
		if !ok {
			return nil, ErrNotFound(applied[i])
		}
		plan.Migrations = append(plan.Migrations, m)
	}
	return plan, nil
}

// Apply executes plan and returns the number of migrations run. A failing
// migration stops the run; its history record is not written, and statements
// it already executed are not undone.
func (r *Runner) Apply(ctx context.Context, plan *Plan) (int, error) {
	if plan.DryRun || len(plan.Migrations) == 0 {
		return 0, nil
	}

	if r.lock != nil {
		if err := r.lock.Acquire(); err != nil {
			return 0, err
		}
		defer func() {
			if err := r.lock.Release(); err != nil {
				r.log.Error("failed to release migration lock", slog.String("err", err.Error()))
			}
		}()
	}

	done := 0
	for _, m := range plan.Migrations {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		var err error
		if plan.Direction == Down {
			err = r.down(ctx, m, plan.Migrations)
		} else {
			err = r.up(ctx, m)
		}
		if err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

func (r *Runner) up(ctx context.Context, m *Migration) error {
	start := r.now()
	if err := r.run(ctx, m.ID, m.Up); err != nil {
		return err
	}

	elapsed := r.now().Sub(start)
	rec := &Record{
		MigrationID:     m.ID,
		Checksum:        CalculateChecksum(m),
		AppliedAt:       start.UTC(),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	if err := r.history.insert(ctx, r.exec, rec); err != nil {
		return ErrFailed(m.ID, err)
	}

	r.log.Info("migration applied", slog.String("id", m.ID), slog.Int64("ms", rec.ExecutionTimeMs))
	return nil
}

func (r *Runner) down(ctx context.Context, m *Migration, migrations []*Migration) error {
	if err := r.validator.CanRollback(m.ID, migrations); err != nil {
		return err
	}

	statements := m.Down
	if len(statements) == 0 {
		generated, err := r.rollback.GenerateDown(m.Up)
		if err != nil {
			return err
		}
		statements = generated
	}

	if err := r.run(ctx, m.ID, statements); err != nil {
		return err
	}
	if err := r.history.delete(ctx, r.exec, m.ID); err != nil {
		return ErrFailed(m.ID, err)
	}

	r.log.Info("migration rolled back", slog.String("id", m.ID))
	return nil
}

func (r *Runner) run(ctx context.Context, id string, statements []string) error {
	for _, stmt := range statements {
		if _, _, err := r.exec.Execute(ctx, stmt, nil); err != nil {
			return ErrFailed(id, err)
		}
	}
	return nil
}

// Status lists every known migration and every applied one missing from
// migrations, in ID order.
func (r *Runner) Status(migrations []*Migration) []StatusEntry {
	var entries []StatusEntry
	known := map[string]bool{}
	for _, m := range migrations {
		known[m.ID] = true
		entry := StatusEntry{ID: m.ID, Name: m.Name, Status: Pending}
		if rec, ok := r.history.Get(m.ID); ok {
			entry.Status = Applied
			entry.AppliedAt = rec.AppliedAt
		}
		entries = append(entries, entry)
	}
	for _, rec := range r.history.Records() {
		if !known[rec.MigrationID] {
			entries = append(entries, StatusEntry{ID: rec.MigrationID, Status: Applied, AppliedAt: rec.AppliedAt})
		}
	}

	sortEntries(entries)
	return entries
}

func sorted(migrations []*Migration) []*Migration {
	out := append([]*Migration(nil), migrations...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func sortEntries(entries []StatusEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
}
