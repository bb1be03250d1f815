package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"zbooks-collector/lib/retry"
	"zbooks-collector/lib/scrapers/zbooks"
)

var testInvoices = [][]zbooks.InvoiceRecord{
	{
		{InvoiceID: "INV-000001", Customer: "Jerome Bell", Amount: "$25116", PaidAt: "18 Sep 2025", Status: zbooks.StatusPaid},
		{InvoiceID: "INV-000002", Customer: "Courtney Henry", Amount: "$7000", PaidAt: "19 Sep 2025", Status: zbooks.StatusPartiallyPaid},
	},
	{
		{InvoiceID: "INV-000003", Customer: "Dianne Russell", Amount: "$3200", PaidAt: "21 Sep 2025", Status: zbooks.StatusPaid},
	},
}

// fakeDriver serves scripted pages, failing the first failures
// navigation attempts with failErr.
type fakeDriver struct {
	pages     [][]zbooks.InvoiceRecord
	failures  int
	failErr   error
	navigates int
	attempts  int
}

func (d *fakeDriver) NavigateToInvoices(ctx context.Context) error {
	d.attempts++
	if d.failures > 0 {
		d.failures--
		return d.failErr
	}
	d.navigates++
	return nil
}

func (d *fakeDriver) ListRows(ctx context.Context, cursor zbooks.Cursor) ([]zbooks.InvoiceRecord, zbooks.Cursor, bool, error) {
	page := int(cursor)
	return d.pages[page], cursor + 1, page == len(d.pages)-1, nil
}

func testService(t *testing.T, driver PageDriver) Service {
	return NewService(driver, nil, Options{
		OutputDir: t.TempDir(),
		Retry: retry.Options{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			Retryable:   zbooks.IsTransient,
		},
	})
}

func TestRunWritesCsv(t *testing.T) {
	driver := &fakeDriver{pages: testInvoices}
	service := testService(t, driver)

	result, err := service.Run(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, result.RecordCount)
	require.Equal(t, filepath.Join(service.opts.OutputDir, "invoices.csv"), result.OutputPath)

	raw, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	expect := "invoice_id,customer,amount,paid_at,status\n" +
		"INV-000001,Jerome Bell,$25116,18 Sep 2025,Paid\n" +
		"INV-000002,Courtney Henry,$7000,19 Sep 2025,Partially Paid\n" +
		"INV-000003,Dianne Russell,$3200,21 Sep 2025,Paid\n"
	if diff := cmp.Diff(expect, string(raw)); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithKeyIsIdempotent(t *testing.T) {
	driver := &fakeDriver{pages: testInvoices}
	service := testService(t, driver)

	first, err := service.Run(context.Background(), "daily-run-2025-09-18")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, first.RecordCount)
	require.Equal(
		t,
		filepath.Join(service.opts.OutputDir, "invoices_daily-run-2025-09-18.csv"),
		first.OutputPath,
	)
	require.Equal(t, 1, driver.navigates)

	// the second run must not touch the page driver
	second, err := service.Run(context.Background(), "daily-run-2025-09-18")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, first, second)
	require.Equal(t, 1, driver.navigates)

	// a different key scrapes again, with its own output file
	third, err := service.Run(context.Background(), "daily-run-2025-09-19")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, driver.navigates)
	require.NotEqual(t, first.OutputPath, third.OutputPath)
}

func TestRunWithoutKeyAlwaysScrapes(t *testing.T) {
	driver := &fakeDriver{pages: testInvoices}
	service := testService(t, driver)

	_, err := service.Run(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = service.Run(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, driver.navigates)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	driver := &fakeDriver{
		pages:    testInvoices,
		failures: 2,
		failErr:  &zbooks.StatusError{Code: 429},
	}
	service := testService(t, driver)

	result, err := service.Run(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, result.RecordCount)
	require.Equal(t, 3, driver.attempts)
}

func TestRunSurfacesExhaustedRetries(t *testing.T) {
	driver := &fakeDriver{
		pages:    testInvoices,
		failures: 10,
		failErr:  &zbooks.StatusError{Code: 503},
	}
	service := testService(t, driver)

	_, err := service.Run(context.Background(), "flaky-run")
	require.Error(t, err)
	require.Equal(t, 3, driver.attempts)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)

	// a failed run must not poison the cache or leave a CSV behind
	_, statErr := os.Stat(filepath.Join(service.opts.OutputDir, "invoices_flaky-run.csv"))
	require.True(t, os.IsNotExist(statErr))

	driver.failures = 0
	result, err := service.Run(context.Background(), "flaky-run")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 3, result.RecordCount)
}

func TestRunStopsOnPermanentFailure(t *testing.T) {
	driver := &fakeDriver{
		pages:    testInvoices,
		failures: 10,
		failErr:  &zbooks.StatusError{Code: 404},
	}
	service := testService(t, driver)

	_, err := service.Run(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, 1, driver.attempts)
}

func TestOutputPathPerKey(t *testing.T) {
	service := testService(t, &fakeDriver{pages: testInvoices})

	require.Equal(
		t,
		filepath.Join(service.opts.OutputDir, "invoices.csv"),
		service.outputPath(""),
	)
	for _, key := range []string{"daily-run-2025-09-18", "x"} {
		require.Equal(
			t,
			filepath.Join(service.opts.OutputDir, fmt.Sprintf("invoices_%s.csv", key)),
			service.outputPath(key),
		)
	}
}
