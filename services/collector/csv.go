package collector

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"zbooks-collector/lib/scrapers/zbooks"
)

var csvColumns = []string{"invoice_id", "customer", "amount", "paid_at", "status"}

// writeCsv serializes the collected records, header included. Only
// called after a fully successful extraction so a half-scraped run
// never leaves a partial file behind.
func writeCsv(path string, records []zbooks.InvoiceRecord) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	err = writer.Write(csvColumns)
	if err != nil {
		return err
	}
	for _, record := range records {
		err = writer.Write([]string{
			record.InvoiceID,
			record.Customer,
			record.Amount,
			record.PaidAt,
			string(record.Status),
		})
		if err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
