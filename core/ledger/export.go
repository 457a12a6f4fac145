package ledger

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Deletions"

var exportHeader = []interface{}{
	"ID", "Type", "Entity ID", "Name", "Workspace", "Deleted at", "Deleted by",
	"Restorable", "Restored at", "Restored by", "Treasury adjustment",
}

// Export writes entries as an XLSX workbook with one row per entry.
func Export(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}
	// keep the header visible while scrolling
	if err = f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return errors.Wrap(err, "freezing header")
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			e.ID,
			string(e.EntityType),
			e.EntityID,
			e.EntityName,
			e.WorkspaceID,
			formatTime(e.DeletedAt),
			e.DeletedBy,
			e.CanRestore,
			formatTime(e.RestoredAt),
			e.RestoredBy,
			e.Calculations.Adjustment().String(),
		}
		if err = f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
