package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// CSVTimeLayout is used for park and exit times in CSV attachments
	CSVTimeLayout = "2006-01-02 15:04:05"
	// NotAvailable fills cells of reservations still open or unresolved
	NotAvailable = "N/A"
)

// Header is the column set shared by the CSV and XLSX reports
var Header = []string{"Reservation ID", "Spot ID", "Parking Lot Name", "Park Time", "Exit Time", "Total Cost"}

// Line is one reservation row of a report
type Line struct {
	ReservationID uint
	SpotID        uint
	LotName       string
	ParkTime      time.Time
	ExitTime      *time.Time
	TotalCost     *float64
}

func (l Line) cells() []string {
	lotName := l.LotName
	if lotName == "" {
		lotName = NotAvailable
	}
	return []string{
		strconv.FormatUint(uint64(l.ReservationID), 10),
		strconv.FormatUint(uint64(l.SpotID), 10),
		lotName,
		FormatTime(&l.ParkTime, CSVTimeLayout),
		FormatTime(l.ExitTime, CSVTimeLayout),
		FormatCost(l.TotalCost),
	}
}

// FormatTime formats t with layout, or N/A when t is nil or zero
func FormatTime(t *time.Time, layout string) string {
	if t == nil || t.IsZero() {
		return NotAvailable
	}
	return t.Format(layout)
}

// FormatCost renders a cost with two decimals, or N/A when unbilled
func FormatCost(cost *float64) string {
	if cost == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f", *cost)
}

// CSV renders the lines as a UTF-8 CSV document
func CSV(lines []Line) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, line := range lines {
		if err := w.Write(line.cells()); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Workbook renders the lines into a single-sheet XLSX workbook.
// The caller closes the returned file.
func Workbook(lines []Line) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Reservations"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for r, line := range lines {
		row := r + 2
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), line.ReservationID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), line.SpotID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), line.LotName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), FormatTime(&line.ParkTime, CSVTimeLayout))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), FormatTime(line.ExitTime, CSVTimeLayout))
		if line.TotalCost != nil {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), *line.TotalCost)
		} else {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), NotAvailable)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 14)
	_ = f.SetColWidth(sheetName, "C", "C", 30)
	_ = f.SetColWidth(sheetName, "D", "E", 20)
	_ = f.SetColWidth(sheetName, "F", "F", 12)

	return f, nil
}
