package bronze

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// Readers
// ----------------------------------------------------------------------------

func TestCSVReader_SkipsBOM(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"file with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "hello,world"...), "hello,world"},
		{"file without BOM", []byte("hello,world"), "hello,world"},
		{"empty file", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial BOM", []byte{0xEF, 0xBB, 'a'}, "??a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newCSVReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCSVReader_SanitizesUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ASCII", []byte("a,b"), "a,b"},
		{"valid multibyte", []byte("São Paulo,Zürich"), "São Paulo,Zürich"},
		{"invalid byte", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"truncated sequence at EOF", []byte{'x', 0xE2, 0x82}, "x??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newCSVReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCSVReader_TinyBuffers(t *testing.T) {
	input := "city\nSão Paulo\n"
	// One byte at a time forces multibyte runes across Read calls.
	got, err := io.ReadAll(iotest.OneByteReader(newCSVReader(strings.NewReader(input))))
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestCSVReader_CountsBytes(t *testing.T) {
	r := newCSVReader(strings.NewReader("abc\n"))
	_, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r.BytesRead)
}

// ----------------------------------------------------------------------------
// ReadCSV
// ----------------------------------------------------------------------------

func TestReadCSV(t *testing.T) {
	input := " Order_ID ,customer_id,TOTAL_AMOUNT,order_id\n" +
		"O1,C1,10.00,dup\n" +
		"O2,C2\n" +
		"O3,,  ,x,extra\n"

	raw, err := ReadCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"order_id", "customer_id", "total_amount"}, raw.Columns)
	require.Len(t, raw.Rows, 3)
	assert.Equal(t, core.RawRow{"order_id": "O1", "customer_id": "C1", "total_amount": "10.00"}, raw.Rows[0])
	assert.Equal(t, core.RawRow{"order_id": "O2", "customer_id": "C2"}, raw.Rows[1], "short rows leave columns unset")
	assert.Equal(t, core.RawRow{"order_id": "O3", "customer_id": "", "total_amount": "  "}, raw.Rows[2])
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	raw, err := ReadCSV(context.Background(), strings.NewReader("customer_id,signup_date,age\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "signup_date", "age"}, raw.Columns)
	assert.Empty(t, raw.Rows)
}

func TestReadCSV_Empty(t *testing.T) {
	raw, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, raw.Columns)
}

func TestReadCSV_Cancelled(t *testing.T) {
	var b strings.Builder
	b.WriteString("id\n")
	for i := 0; i < 500; i++ {
		b.WriteString("x\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader(b.String()))
	assert.ErrorIs(t, err, context.Canceled)
}

// ----------------------------------------------------------------------------
// Providers
// ----------------------------------------------------------------------------

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCSVDir_Snapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "customers.csv", "\xEF\xBB\xBFcustomer_id,signup_date,age\nC1,2023-01-05,30\n")
	writeFile(t, dir, "payments.csv", "payment_id,order_id,paymnt_date,payment_status\nY1,O1,2024-01-02,Success\n")

	snapshot, err := NewCSVDir(dir).Snapshot(context.Background())
	require.NoError(t, err)

	require.Contains(t, snapshot, core.TableCustomers)
	assert.Equal(t, "customer_id", snapshot[core.TableCustomers].Columns[0], "BOM must not leak into the header")
	assert.Equal(t, "C1", snapshot[core.TableCustomers].Rows[0]["customer_id"])

	require.Contains(t, snapshot, core.TablePayments)
	assert.NotContains(t, snapshot, core.TableOrders, "missing files leave the table out")
	assert.Len(t, snapshot, 2)
}

func TestCSVDir_FeedsTransform(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "customers.csv", "customer_id,signup_date,age\nC1,2023-01-05,30\nC2,2023-01-05,-4\n")
	writeFile(t, dir, "products.csv", "product_id,price,stock\nP1,9.99,3\n")
	writeFile(t, dir, "orders.csv", "order_id,customer_id,order_date,total_amount\nO1,C1,2024-01-01,9.99\n")
	writeFile(t, dir, "payments.csv", "payment_id,order_id,paymnt_date,payment_status\nY1,O1,2024-01-02,Success\n")
	writeFile(t, dir, "delivery.csv", "delivery_id,order_id,deliver_date\nD1,O1,2024-01-03\n")

	snapshot, err := NewCSVDir(dir).Snapshot(context.Background())
	require.NoError(t, err)

	result, err := core.Transform(snapshot, core.Options{})
	require.NoError(t, err)
	assert.Len(t, result.Silver.Customers, 1)
	assert.Len(t, result.Silver.Delivery, 1)
	assert.Equal(t, 1, result.Ledger.Len())
}

func TestStatic_Snapshot(t *testing.T) {
	want := core.BronzeSnapshot{core.TableCustomers: core.NewRawTable(core.RawRow{"customer_id": "C1"})}

	got, err := Static(want).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Static(want).Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
