package google

import (
	"fmt"
	"strings"
	"time"

	"saldo/internal/core"
)

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// valuesToRows converts the Sheets API matrix into string rows. Trailing
// empty cells are omitted by the API, so rows may be short.
func valuesToRows(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

// findRowByID returns the zero-based row whose first cell is id, or -1.
func findRowByID(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

// transactionRow is the A:F layout of the ledger sheet:
// id, date, title, type, value, category.
func transactionRow(tx core.Transaction) []any {
	category := tx.CategoryID
	if tx.Category != nil {
		category = tx.Category.Title
	}
	return []any{
		tx.ID,
		tx.CreatedAt.UTC().Format(time.DateOnly),
		tx.Title,
		string(tx.Type),
		tx.Value.String(),
		category,
	}
}
