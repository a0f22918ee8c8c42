package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"saldo/internal/cache"
	"saldo/internal/core"
	ports "saldo/internal/sheets"
	"saldo/internal/tabular"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// ledgerSheet receives mirrored transactions.
	ledgerSheet string
	// sheetIDs maps sheet titles to ids; a sheet can be recreated, so entries expire.
	sheetIDs cache.Cache[int64]
}

const sheetIDTTL = 10 * time.Minute

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, ledgerSheet string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	ledgerSheet = strings.TrimSpace(ledgerSheet)
	if ledgerSheet == "" {
		ledgerSheet = "Ledger"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerSheet:   ledgerSheet,
		sheetIDs:      cache.NewLRUCache[int64](16, sheetIDTTL),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Source returns the given A1 range as an import source. The range must
// include the header row.
func (c *Client) Source(rng string) tabular.Source {
	return &rangeSource{client: c, rng: rng}
}

func (c *Client) readRange(ctx context.Context, rng string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// AppendTransaction adds a row to the ledger sheet unless one with the
// same id is already there.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	ids, err := c.readRange(ctx, fmt.Sprintf("%s!A:A", c.ledgerSheet))
	if err != nil {
		return err
	}
	if findRowByID(ids, tx.ID) >= 0 {
		slog.DebugContext(ctx, "Transaction already mirrored", "id", tx.ID)
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", c.ledgerSheet)
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.ledgerSheet, err)
	}

	slog.InfoContext(ctx, "Transaction mirrored", "id", tx.ID, "sheet", c.ledgerSheet)
	return nil
}

// DeleteTransaction removes the row holding id. A missing row is not an error.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	ids, err := c.readRange(ctx, fmt.Sprintf("%s!A:A", c.ledgerSheet))
	if err != nil {
		return err
	}
	row := findRowByID(ids, id)
	if row < 0 {
		slog.DebugContext(ctx, "Transaction not in sheet", "id", id)
		return nil
	}

	sheetID, err := c.sheetID(ctx, c.ledgerSheet)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row) + 1,
					// the first sheet has id 0 and row 0 is a valid index
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", row+1, c.ledgerSheet, err)
	}

	slog.InfoContext(ctx, "Transaction removed from sheet", "id", id, "row", row+1)
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	if id, ok := c.sheetIDs.Get(title); ok {
		return id, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			c.sheetIDs.Set(title, s.Properties.SheetId)
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

// rangeSource reads a sheet range once per Open. Release is a no-op: the
// spreadsheet is owned by the user.
type rangeSource struct {
	client *Client
	rng    string
}

func (s *rangeSource) Name() string { return s.rng }

func (s *rangeSource) Open(ctx context.Context) (tabular.Rows, error) {
	values, err := s.client.readRange(ctx, s.rng)
	if err != nil {
		return nil, err
	}
	return tabular.NewSliceRows(valuesToRows(values)), nil
}

func (s *rangeSource) Release(ctx context.Context) error {
	slog.DebugContext(ctx, "Sheet source left in place", "range", s.rng)
	return nil
}
