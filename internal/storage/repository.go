package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// ErrTransactionExists is returned by Insert when the transaction ID is taken.
var ErrTransactionExists = errors.New("transaction already exists")

// SQLiteRepository implements the recurring, installment and transaction
// stores on a single SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// RecurringDefinitions exposes the repository as a services.RecurringStore.
type RecurringDefinitions struct{ *SQLiteRepository }

// InstallmentPlans exposes the repository as a services.InstallmentStore.
type InstallmentPlans struct{ *SQLiteRepository }

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer; serialize through one connection so
	// concurrent generate calls queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database connectivity for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Recurring returns the repository as a services.RecurringStore.
func (r *SQLiteRepository) Recurring() RecurringDefinitions { return RecurringDefinitions{r} }

// Installments returns the repository as a services.InstallmentStore.
func (r *SQLiteRepository) Installments() InstallmentPlans { return InstallmentPlans{r} }

// CreateRecurringDefinition stores def as-is. Validation happens at
// generation time so that bad rows are reported instead of hidden.
func (r *SQLiteRepository) CreateRecurringDefinition(ctx context.Context, def core.RecurringDefinition) error {
	err := r.queries.CreateRecurringDefinition(ctx, CreateRecurringDefinitionParams{
		ID:          def.ID,
		FamilyID:    def.FamilyID,
		Kind:        string(def.Kind),
		Description: def.Description,
		AmountCents: def.Amount.Cents,
		Frequency:   string(def.Frequency),
		DayOfMonth:  int64(def.DayOfMonth),
		StartDate:   def.StartDate.String(),
		EndDate:     nullString(def.EndDate.String()),
		CategoryID:  def.CategoryID,
		Active:      boolToInt(def.Active),
	})
	if err != nil {
		return fmt.Errorf("create recurring definition %s: %w", def.ID, err)
	}
	return nil
}

// ListActive returns the family's active definitions ordered by ID.
func (r RecurringDefinitions) ListActive(ctx context.Context, familyID string) ([]core.RecurringDefinition, error) {
	rows, err := r.queries.ListActiveRecurringDefinitions(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list active recurring definitions: %w", err)
	}

	defs := make([]core.RecurringDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := recurringFromRow(row)
		if err != nil {
			// Kept with zero dates so validation reports it per definition.
			slog.WarnContext(ctx, "Undecodable recurring definition",
				"recurring_id", row.ID,
				"error", err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (r RecurringDefinitions) TouchLastGenerated(ctx context.Context, id string, at time.Time) error {
	n, err := r.queries.TouchLastGenerated(ctx, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("touch last generated: %w", err)
	}
	if n == 0 {
		slog.WarnContext(ctx, "Touch on unknown recurring definition", "recurring_id", id)
	}
	return nil
}

func (r RecurringDefinitions) ListFamilies(ctx context.Context) ([]string, error) {
	families, err := r.queries.ListFamiliesWithActiveDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	return families, nil
}

func (r *SQLiteRepository) CreateInstallmentPlan(ctx context.Context, plan core.InstallmentPlan) error {
	err := r.queries.CreateInstallmentPlan(ctx, CreateInstallmentPlanParams{
		ID:                 plan.ID,
		FamilyID:           plan.FamilyID,
		Description:        plan.Description,
		StartDate:          plan.StartDate.String(),
		AmountCents:        plan.Amount.Cents,
		TotalInstallments:  int64(plan.TotalInstallments),
		CurrentInstallment: int64(plan.CurrentInstallment),
		CategoryID:         plan.CategoryID,
		Active:             boolToInt(plan.Active),
	})
	if err != nil {
		return fmt.Errorf("create installment plan %s: %w", plan.ID, err)
	}
	return nil
}

func (r InstallmentPlans) ListActive(ctx context.Context, familyID string) ([]core.InstallmentPlan, error) {
	rows, err := r.queries.ListActiveInstallmentPlans(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list active installment plans: %w", err)
	}

	plans := make([]core.InstallmentPlan, 0, len(rows))
	for _, row := range rows {
		start, err := core.ParseDate(row.StartDate)
		if err != nil {
			slog.WarnContext(ctx, "Undecodable installment plan",
				"plan_id", row.ID,
				"error", err)
		}
		plans = append(plans, core.InstallmentPlan{
			ID:                 row.ID,
			FamilyID:           row.FamilyID,
			Description:        row.Description,
			StartDate:          start,
			Amount:             core.Money{Cents: row.AmountCents},
			TotalInstallments:  int(row.TotalInstallments),
			CurrentInstallment: int(row.CurrentInstallment),
			CategoryID:         row.CategoryID,
			Active:             row.Active == 1,
		})
	}
	return plans, nil
}

// Insert stores tx. A second occurrence for the same (recurring_id, period)
// violates the unique index and is reported as core.ErrDuplicateOccurrence.
func (r *SQLiteRepository) Insert(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:            tx.ID,
		FamilyID:      tx.FamilyID,
		RecurringID:   nullString(tx.RecurringID),
		Kind:          string(tx.Kind),
		Description:   tx.Description,
		AmountCents:   tx.Amount.Cents,
		Date:          tx.Date.String(),
		Period:        nullString(tx.Period),
		CategoryID:    tx.CategoryID,
		AutoGenerated: boolToInt(tx.AutoGenerated),
		CreatedAt:     createdAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) && tx.RecurringID != "" {
			return fmt.Errorf("%w: %s %s", core.ErrDuplicateOccurrence, tx.RecurringID, tx.Period)
		}
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
			return fmt.Errorf("%w: %s", ErrTransactionExists, tx.ID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"recurring_id", tx.RecurringID,
		"period", tx.Period,
		"amount_cents", tx.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) FindByRecurringIDInRange(ctx context.Context, recurringID string, start, end core.Date) ([]core.Transaction, error) {
	rows, err := r.queries.FindTransactionsByRecurringIDInRange(ctx, FindTransactionsByRecurringIDInRangeParams{
		RecurringID: recurringID,
		StartDate:   start.String(),
		EndDate:     end.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("find transactions by recurring id: %w", err)
	}
	return transactionsFromRows(rows)
}

func (r *SQLiteRepository) FindByDescriptionAmountDate(ctx context.Context, familyID, description string, amount core.Money, date core.Date) ([]core.Transaction, error) {
	rows, err := r.queries.FindTransactionsByDescriptionAmountDate(ctx, FindTransactionsByDescriptionAmountDateParams{
		FamilyID:    familyID,
		Description: description,
		AmountCents: amount.Cents,
		Date:        date.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("find transactions by description: %w", err)
	}
	return transactionsFromRows(rows)
}

// ListTransactions returns every transaction of a family ordered by date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, familyID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByFamily(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactionsFromRows(rows)
}

// recurringFromRow always returns the decoded row. On a bad stored date both
// dates are left zero so the definition fails Validate.
func recurringFromRow(row RecurringDefinition) (core.RecurringDefinition, error) {
	start, err := core.ParseDate(row.StartDate)
	var end core.Date
	if err == nil && row.EndDate.Valid && row.EndDate.String != "" {
		end, err = core.ParseDate(row.EndDate.String)
	}
	if err != nil {
		start, end = core.Date{}, core.Date{}
	}
	var last time.Time
	if row.LastGeneratedAt.Valid {
		// Advisory only; an unparsable value is treated as never generated.
		last, _ = time.Parse(time.RFC3339, row.LastGeneratedAt.String)
	}

	return core.RecurringDefinition{
		ID:              row.ID,
		FamilyID:        row.FamilyID,
		Kind:            core.Kind(row.Kind),
		Description:     row.Description,
		Amount:          core.Money{Cents: row.AmountCents},
		Frequency:       core.Frequency(row.Frequency),
		DayOfMonth:      int(row.DayOfMonth),
		StartDate:       start,
		EndDate:         end,
		CategoryID:      row.CategoryID,
		Active:          row.Active == 1,
		LastGeneratedAt: last,
	}, err
}

func transactionsFromRows(rows []Transaction) ([]core.Transaction, error) {
	txs := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		date, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.ID, err)
		}
		createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
		txs = append(txs, core.Transaction{
			ID:            row.ID,
			FamilyID:      row.FamilyID,
			RecurringID:   row.RecurringID.String,
			Kind:          core.Kind(row.Kind),
			Description:   row.Description,
			Amount:        core.Money{Cents: row.AmountCents},
			Date:          date,
			Period:        row.Period.String,
			CategoryID:    row.CategoryID,
			AutoGenerated: row.AutoGenerated == 1,
			CreatedAt:     createdAt,
		})
	}
	return txs, nil
}

func isConstraint(err error, code int) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == code
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
