// Package interfaces exposes the forecasting read surfaces: report
// exports and HTTP handlers.
package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	forecasting "inventory-pulse/internal/forecasting/domain"
)

// BuildForecastPDF renders the latest forecasts as a PDF report.
func BuildForecastPDF(forecasts []forecasting.Forecast, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Inventory Forecast Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Items: %d", len(forecasts)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Item", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Avg Daily Demand", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Days To Stockout", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Suggested Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Order By", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Confidence", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, f := range forecasts {
		pdf.CellFormat(50, 6, f.ItemID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", f.AvgDailyDelta), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, formatRunway(f.DaysToStockout), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", f.SuggestedReorderQty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, formatOrderDate(f.SuggestedOrderDate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", f.Confidence), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildForecastXLSX renders the latest forecasts as an XLSX workbook.
func BuildForecastXLSX(forecasts []forecasting.Forecast, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	forecastSheet := "forecasts"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(forecastSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Inventory Forecast Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Items")
	_ = f.SetCellValue(summarySheet, "B4", len(forecasts))

	headers := []string{"Item", "Computed At", "Horizon (days)", "Avg Daily Demand", "Days To Stockout", "Suggested Qty", "Order By", "Confidence"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(forecastSheet, cell, h)
	}
	for i, fc := range forecasts {
		row := i + 2
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("A%d", row), fc.ItemID)
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("B%d", row), fc.ComputedAt.Format(time.RFC3339))
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("C%d", row), fc.HorizonDays)
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("D%d", row), fc.AvgDailyDelta)
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("E%d", row), formatRunway(fc.DaysToStockout))
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("F%d", row), fc.SuggestedReorderQty)
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("G%d", row), formatOrderDate(fc.SuggestedOrderDate))
		_ = f.SetCellValue(forecastSheet, fmt.Sprintf("H%d", row), fc.Confidence)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatRunway(days *float64) string {
	if days == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *days)
}

func formatOrderDate(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return d.Format("2006-01-02")
}
