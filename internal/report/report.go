// Package report exports tickets as spreadsheets for the help-desk team.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MikeSquared-Agency/intake/internal/intake"
)

const sheetName = "Tickets"

var header = []any{"ID", "Created", "Name", "Email", "Phone", "Address", "Issue", "Price"}

// WriteTickets writes tickets as an .xlsx workbook, one row per ticket in the
// order given.
func WriteTickets(w io.Writer, tickets []*intake.Ticket) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range tickets {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []any{
			t.ID,
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.Name,
			t.Email,
			t.Phone,
			t.Address,
			t.Issue,
			t.Price,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write ticket %d: %w", t.ID, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "G", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
