package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/log"
	ports "github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.ForecastExporter = (*Client)(nil)

// Config selects the spreadsheet and service account credentials. Inline
// JSON wins over the file when both are set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

func (c Config) clientOptions() ([]goption.ClientOption, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	switch {
	case strings.TrimSpace(c.CredentialsJSON) != "":
		opts = append(opts, goption.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case strings.TrimSpace(c.CredentialsFile) != "":
		opts = append(opts, goption.WithCredentialsFile(c.CredentialsFile))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return opts, nil
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Forecast"
	}
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}

	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

// ExportMonthly appends the summaries below the existing rows of the
// forecast sheet. Nothing is written for an empty projection.
func (c *Client) ExportMonthly(ctx context.Context, familyID string, asOf core.Date, months []core.MonthlySummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(months) == 0 {
		return "", nil
	}

	rng := sheetRange(c.sheetName)
	vr := &gsheet.ValueRange{Values: ports.MonthlyRows(familyID, asOf, months)}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	c.logger.InfoContext(ctx, "Exported monthly forecast",
		log.FieldFamilyID, familyID,
		log.FieldAsOf, asOf.String(),
		"rows", len(months),
		"range", ref)
	return ref, nil
}

// sheetRange quotes the sheet name so names with spaces address correctly.
func sheetRange(sheetName string) string {
	return fmt.Sprintf("'%s'!A:H", strings.ReplaceAll(sheetName, "'", "''"))
}
