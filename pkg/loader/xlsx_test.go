package loader

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.xlsx")

	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func TestLoad_XLSX(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"actor_id", "timestamp", "action", "reason", "record_count", "category"},
		{"E100", "2026-07-15 10:00:00", "DOWNLOAD", "monthly review", "120", "GENERAL"},
		{"E200", "2026-07-15 11:00:00", "조회", "", "1", "인사마스터"},
	})

	res, err := New(WithLocation(time.UTC)).Load(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2 (malformed: %v)", len(res.Entries), res.Malformed)
	}

	first := res.Entries[0]
	if first.ActorID != "E100" || first.Action != ActionDownload || first.RecordCount != 120 {
		t.Errorf("first entry = %+v", first)
	}
	second := res.Entries[1]
	if second.Action != ActionView || second.Category != CategoryHRMaster {
		t.Errorf("second entry = %+v", second)
	}
}

func TestLoad_XLSXAndCSVMixed(t *testing.T) {
	xlsxPath := writeWorkbook(t, [][]any{
		{"actor_id", "timestamp", "action"},
		{"E100", "2026-07-15 10:00:00", "VIEW"},
	})
	csvPath := writeExport(t, "export.csv", `actor_id,timestamp,action
E200,2026-07-15 09:00:00,VIEW
`)

	res, err := New(WithLocation(time.UTC)).Load(context.Background(), []string{xlsxPath, csvPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	if res.Entries[0].ActorID != "E200" {
		t.Errorf("first entry = %s, want E200 (merged batch sorted by time)", res.Entries[0].ActorID)
	}
}

func TestLoad_XLSXMissingFile(t *testing.T) {
	if _, err := New().Load(context.Background(), []string{"/nonexistent/export.xlsx"}); err == nil {
		t.Error("Load() expected error for missing workbook")
	}
}
