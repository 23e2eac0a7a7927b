package work

import (
	"context"

	"github.com/xuri/excelize/v2"
)

var exportColumns = []string{
	"Priority", "Subject", "Label", "Process Type", "Step",
	"Responsible Party", "Assigned To", "Approval", "Waiting Since", "Instance",
}

// ExportXLSX renders the current work queue as a spreadsheet, preserving the
// queue's order row for row.
func (s *WorkServiceImpl) ExportXLSX(ctx context.Context, filter Filter) ([]byte, error) {
	items, err := s.NextWork(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Work Queue"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, item := range items {
		approval := ""
		if item.RequiresApproval {
			approval = "required"
		}
		values := []interface{}{
			item.Priority,
			item.SubjectID,
			item.SubjectLabel,
			string(item.ProcessType),
			item.StepName,
			item.ResponsibleParty,
			item.AssignedTo,
			approval,
			item.WaitingSince.Format("2006-01-02 15:04:05"),
			item.InstanceID,
		}
		for colIdx, val := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
