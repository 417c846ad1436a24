package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type RecurringDefinition struct {
	ID              string
	FamilyID        string
	Kind            string
	Description     string
	AmountCents     int64
	Frequency       string
	DayOfMonth      int64
	StartDate       string
	EndDate         sql.NullString
	CategoryID      string
	Active          int64
	LastGeneratedAt sql.NullString
}

type InstallmentPlan struct {
	ID                 string
	FamilyID           string
	Description        string
	StartDate          string
	AmountCents        int64
	TotalInstallments  int64
	CurrentInstallment int64
	CategoryID         string
	Active             int64
}

type Transaction struct {
	ID            string
	FamilyID      string
	RecurringID   sql.NullString
	Kind          string
	Description   string
	AmountCents   int64
	Date          string
	Period        sql.NullString
	CategoryID    string
	AutoGenerated int64
	CreatedAt     string
}

const createRecurringDefinition = `-- name: CreateRecurringDefinition :exec
INSERT INTO recurring_definitions (
    id, family_id, kind, description, amount_cents, frequency,
    day_of_month, start_date, end_date, category_id, active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    family_id = excluded.family_id,
    kind = excluded.kind,
    description = excluded.description,
    amount_cents = excluded.amount_cents,
    frequency = excluded.frequency,
    day_of_month = excluded.day_of_month,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    category_id = excluded.category_id,
    active = excluded.active
`

type CreateRecurringDefinitionParams struct {
	ID          string
	FamilyID    string
	Kind        string
	Description string
	AmountCents int64
	Frequency   string
	DayOfMonth  int64
	StartDate   string
	EndDate     sql.NullString
	CategoryID  string
	Active      int64
}

func (q *Queries) CreateRecurringDefinition(ctx context.Context, arg CreateRecurringDefinitionParams) error {
	_, err := q.db.ExecContext(ctx, createRecurringDefinition,
		arg.ID,
		arg.FamilyID,
		arg.Kind,
		arg.Description,
		arg.AmountCents,
		arg.Frequency,
		arg.DayOfMonth,
		arg.StartDate,
		arg.EndDate,
		arg.CategoryID,
		arg.Active,
	)
	return err
}

const listActiveRecurringDefinitions = `-- name: ListActiveRecurringDefinitions :many
SELECT id, family_id, kind, description, amount_cents, frequency, day_of_month,
       start_date, end_date, category_id, active, last_generated_at
FROM recurring_definitions
WHERE family_id = ? AND active = 1
ORDER BY id
`

func (q *Queries) ListActiveRecurringDefinitions(ctx context.Context, familyID string) ([]RecurringDefinition, error) {
	rows, err := q.db.QueryContext(ctx, listActiveRecurringDefinitions, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringDefinition
	for rows.Next() {
		var i RecurringDefinition
		if err := rows.Scan(
			&i.ID,
			&i.FamilyID,
			&i.Kind,
			&i.Description,
			&i.AmountCents,
			&i.Frequency,
			&i.DayOfMonth,
			&i.StartDate,
			&i.EndDate,
			&i.CategoryID,
			&i.Active,
			&i.LastGeneratedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listFamiliesWithActiveDefinitions = `-- name: ListFamiliesWithActiveDefinitions :many
SELECT DISTINCT family_id FROM recurring_definitions
WHERE active = 1
ORDER BY family_id
`

func (q *Queries) ListFamiliesWithActiveDefinitions(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listFamiliesWithActiveDefinitions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var familyID string
		if err := rows.Scan(&familyID); err != nil {
			return nil, err
		}
		items = append(items, familyID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const touchLastGenerated = `-- name: TouchLastGenerated :execrows
UPDATE recurring_definitions SET last_generated_at = ? WHERE id = ?
`

func (q *Queries) TouchLastGenerated(ctx context.Context, lastGeneratedAt, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, touchLastGenerated, lastGeneratedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createInstallmentPlan = `-- name: CreateInstallmentPlan :exec
INSERT INTO installment_plans (
    id, family_id, description, start_date, amount_cents,
    total_installments, current_installment, category_id, active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    family_id = excluded.family_id,
    description = excluded.description,
    start_date = excluded.start_date,
    amount_cents = excluded.amount_cents,
    total_installments = excluded.total_installments,
    current_installment = excluded.current_installment,
    category_id = excluded.category_id,
    active = excluded.active
`

type CreateInstallmentPlanParams struct {
	ID                 string
	FamilyID           string
	Description        string
	StartDate          string
	AmountCents        int64
	TotalInstallments  int64
	CurrentInstallment int64
	CategoryID         string
	Active             int64
}

func (q *Queries) CreateInstallmentPlan(ctx context.Context, arg CreateInstallmentPlanParams) error {
	_, err := q.db.ExecContext(ctx, createInstallmentPlan,
		arg.ID,
		arg.FamilyID,
		arg.Description,
		arg.StartDate,
		arg.AmountCents,
		arg.TotalInstallments,
		arg.CurrentInstallment,
		arg.CategoryID,
		arg.Active,
	)
	return err
}

const listActiveInstallmentPlans = `-- name: ListActiveInstallmentPlans :many
SELECT id, family_id, description, start_date, amount_cents,
       total_installments, current_installment, category_id, active
FROM installment_plans
WHERE family_id = ? AND active = 1
ORDER BY id
`

func (q *Queries) ListActiveInstallmentPlans(ctx context.Context, familyID string) ([]InstallmentPlan, error) {
	rows, err := q.db.QueryContext(ctx, listActiveInstallmentPlans, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InstallmentPlan
	for rows.Next() {
		var i InstallmentPlan
		if err := rows.Scan(
			&i.ID,
			&i.FamilyID,
			&i.Description,
			&i.StartDate,
			&i.AmountCents,
			&i.TotalInstallments,
			&i.CurrentInstallment,
			&i.CategoryID,
			&i.Active,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (
    id, family_id, recurring_id, kind, description, amount_cents,
    date, period, category_id, auto_generated, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateTransactionParams struct {
	ID            string
	FamilyID      string
	RecurringID   sql.NullString
	Kind          string
	Description   string
	AmountCents   int64
	Date          string
	Period        sql.NullString
	CategoryID    string
	AutoGenerated int64
	CreatedAt     string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.FamilyID,
		arg.RecurringID,
		arg.Kind,
		arg.Description,
		arg.AmountCents,
		arg.Date,
		arg.Period,
		arg.CategoryID,
		arg.AutoGenerated,
		arg.CreatedAt,
	)
	return err
}

const transactionColumns = `id, family_id, recurring_id, kind, description, amount_cents,
       date, period, category_id, auto_generated, created_at`

const findTransactionsByRecurringIDInRange = `-- name: FindTransactionsByRecurringIDInRange :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE recurring_id = ? AND date >= ? AND date <= ?
ORDER BY date, id
`

type FindTransactionsByRecurringIDInRangeParams struct {
	RecurringID string
	StartDate   string
	EndDate     string
}

func (q *Queries) FindTransactionsByRecurringIDInRange(ctx context.Context, arg FindTransactionsByRecurringIDInRangeParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, findTransactionsByRecurringIDInRange, arg.RecurringID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const findTransactionsByDescriptionAmountDate = `-- name: FindTransactionsByDescriptionAmountDate :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE family_id = ? AND description = ? AND amount_cents = ? AND date = ?
ORDER BY id
`

type FindTransactionsByDescriptionAmountDateParams struct {
	FamilyID    string
	Description string
	AmountCents int64
	Date        string
}

func (q *Queries) FindTransactionsByDescriptionAmountDate(ctx context.Context, arg FindTransactionsByDescriptionAmountDateParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, findTransactionsByDescriptionAmountDate,
		arg.FamilyID,
		arg.Description,
		arg.AmountCents,
		arg.Date,
	)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listTransactionsByFamily = `-- name: ListTransactionsByFamily :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE family_id = ?
ORDER BY date, id
`

func (q *Queries) ListTransactionsByFamily(ctx context.Context, familyID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByFamily, familyID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.FamilyID,
			&i.RecurringID,
			&i.Kind,
			&i.Description,
			&i.AmountCents,
			&i.Date,
			&i.Period,
			&i.CategoryID,
			&i.AutoGenerated,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
