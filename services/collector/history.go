package collector

import (
	"context"
	"database/sql"
	"time"

	"zbooks-collector/lib/scrapers/zbooks"
)

// HistoryStore archives completed runs and their invoice rows in
// sqlite, the CSV on disk stays the authoritative output.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(database *sql.DB) *HistoryStore {
	return &HistoryStore{db: database}
}

type Run struct {
	Id             int64
	IdempotencyKey string
	Time           time.Time
	RecordCount    int
	OutputPath     string
}

func (s *HistoryStore) RecordRun(
	ctx context.Context,
	idempotencyKey string,
	at time.Time,
	records []zbooks.InvoiceRecord,
	outputPath string,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO runs (idempotency_key, time, record_count, output_path) VALUES (?, ?, ?, ?)`,
		idempotencyKey, at.Unix(), len(records), outputPath,
	)
	if err != nil {
		return err
	}
	runId, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, record := range records {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO run_invoices (run_id, invoice_id, customer, amount, paid_at, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runId, record.InvoiceID, record.Customer, record.Amount, record.PaidAt, string(record.Status),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *HistoryStore) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, idempotency_key, time, record_count, output_path FROM runs ORDER BY time DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var unix int64
		err = rows.Scan(&run.Id, &run.IdempotencyKey, &unix, &run.RecordCount, &run.OutputPath)
		if err != nil {
			return nil, err
		}
		run.Time = time.Unix(unix, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *HistoryStore) RunInvoices(ctx context.Context, runId int64) ([]zbooks.InvoiceRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT invoice_id, customer, amount, paid_at, status FROM run_invoices WHERE run_id = ?`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []zbooks.InvoiceRecord
	for rows.Next() {
		var record zbooks.InvoiceRecord
		var status string
		err = rows.Scan(&record.InvoiceID, &record.Customer, &record.Amount, &record.PaidAt, &status)
		if err != nil {
			return nil, err
		}
		record.Status = zbooks.Status(status)
		records = append(records, record)
	}
	return records, rows.Err()
}
