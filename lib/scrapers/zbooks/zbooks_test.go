package zbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func invoiceRow(date, id, customer, status, amount string) string {
	return fmt.Sprintf(`<tr>
		<td><input type="checkbox"></td>
		<td>%s</td>
		<td>%s</td>
		<td></td>
		<td>%s</td>
		<td>%s</td>
		<td></td>
		<td>%s</td>
	</tr>`, date, id, customer, status, amount)
}

func invoicePage(rows string, last bool) string {
	disabled := ""
	if last {
		disabled = "disabled"
	}
	return fmt.Sprintf(`<html><body>
		<table><tbody>%s</tbody></table>
		<div id="pagination">
			<button>prev</button>
			<button>1</button>
			<button %s>next</button>
		</div>
	</body></html>`, rows, disabled)
}

func demoServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "2":
			fmt.Fprint(w, invoicePage(
				invoiceRow("21 Sep 2025", "INV-000004", "Dianne Russell", "Paid", "$3200"),
				true,
			))
		default:
			fmt.Fprint(w, invoicePage(
				invoiceRow("18 Sep 2025", "INV-000001", "Jerome Bell", "Paid", "$25116")+
					invoiceRow("19 Sep 2025", "INV-000002", "Courtney Henry", "Partially Paid", "$7000")+
					invoiceRow("20 Sep 2025", "INV-000003", "Ronald Richards", "Overdue", "$900"),
				false,
			))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestScrapeWithPagination(t *testing.T) {
	server := demoServer(t)

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err = client.NavigateToInvoices(ctx)
	if err != nil {
		t.Fatal(err)
	}

	rows, next, done, err := client.ListRows(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, done)
	require.Equal(t, Cursor(1), next)
	// the Overdue row is filtered out
	require.Equal(t, []InvoiceRecord{
		{InvoiceID: "INV-000001", Customer: "Jerome Bell", Amount: "$25116", PaidAt: "18 Sep 2025", Status: StatusPaid},
		{InvoiceID: "INV-000002", Customer: "Courtney Henry", Amount: "$7000", PaidAt: "19 Sep 2025", Status: StatusPartiallyPaid},
	}, rows)

	rows, _, done, err = client.ListRows(ctx, next)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, done)
	require.Len(t, rows, 1)
	require.Equal(t, "INV-000004", rows[0].InvoiceID)
}

func TestMaxPagesBound(t *testing.T) {
	server := demoServer(t)

	client, err := NewClient(ClientOptions{BaseUrl: server.URL, MaxPages: 1})
	if err != nil {
		t.Fatal(err)
	}

	_, _, done, err := client.ListRows(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, done)
}

func TestErrorStatusBecomesStatusError(t *testing.T) {
	status := http.StatusTooManyRequests
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, _, _, err = client.ListRows(context.Background(), 0)
	require.Equal(t, &StatusError{Code: 429}, err)
	require.True(t, IsTransient(err))

	status = http.StatusInternalServerError
	err = client.NavigateToInvoices(context.Background())
	require.Equal(t, &StatusError{Code: 500}, err)
	require.True(t, IsTransient(err))

	status = http.StatusNotFound
	err = client.NavigateToInvoices(context.Background())
	require.Equal(t, &StatusError{Code: 404}, err)
	require.False(t, IsTransient(err))
}

func TestMalformedPageIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, _, _, err = client.ListRows(context.Background(), 0)
	require.Error(t, err)
	require.False(t, IsTransient(err))
}

func TestConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	err = client.NavigateToInvoices(context.Background())
	require.Error(t, err)
	require.True(t, IsTransient(err))
}
