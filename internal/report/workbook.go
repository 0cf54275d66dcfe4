package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/vk/scalegrid/internal/analysis"
	"github.com/vk/scalegrid/internal/experiment"
	"github.com/vk/scalegrid/internal/result"
)

// SummarySheet is the name of the workbook's overview sheet.
const SummarySheet = "Summary"

var datasetHeader = []any{"temperature", "energy_density", "magnetisation", "specific_heat", "susceptibility"}

// WriteWorkbook saves an XLSX workbook with an overview sheet and one sheet
// per parsed scale, named after the scale ("16x16"). a may be nil.
func WriteWorkbook(path string, c *experiment.Collection, a *analysis.Summary) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if err := writeOverview(f, c, a); err != nil {
		return err
	}

	for _, r := range c.Results {
		if r.State != experiment.Parsed {
			continue
		}
		sheet := r.Scale.String()
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeDataset(f, sheet, r.Dataset); err != nil {
			return fmt.Errorf("fill sheet %s: %w", sheet, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeOverview(f *excelize.File, c *experiment.Collection, a *analysis.Summary) error {
	rows := [][]any{{"scale", "state", "points", "elapsed_seconds", "chi_peak_temperature", "c_peak_temperature", "error"}}

	chi, heat := map[int]float64{}, map[int]float64{}
	if a != nil {
		for _, p := range a.SusceptibilityPeaks {
			chi[int(p.Scale)] = p.Temperature
		}
		for _, p := range a.SpecificHeatPeaks {
			heat[int(p.Scale)] = p.Temperature
		}
	}

	for _, r := range c.Results {
		row := []any{int(r.Scale), r.State.String(), nil, nil, nil, nil, nil}
		if d := r.Dataset; d != nil {
			row[2] = d.Len()
			if d.HasElapsed() {
				row[3] = d.ElapsedSeconds()
			}
		}
		if t, ok := chi[int(r.Scale)]; ok {
			row[4] = t
		}
		if t, ok := heat[int(r.Scale)]; ok {
			row[5] = t
		}
		if r.Reason != nil {
			row[6] = r.Reason.Error()
		}
		rows = append(rows, row)
	}

	if a != nil && a.Extrapolation != nil {
		rows = append(rows, nil,
			[]any{"critical_temperature", a.Extrapolation.CriticalTemperature},
			[]any{"r_squared", a.Extrapolation.RSquared})
	}
	return writeRows(f, SummarySheet, rows)
}

func writeDataset(f *excelize.File, sheet string, d *result.Dataset) error {
	header := datasetHeader
	if d.HasCorrelationLength() {
		header = append(append([]any(nil), datasetHeader...), "correlation_length")
	}
	rows := [][]any{header}
	for _, p := range d.Points() {
		row := []any{p.Temperature, p.EnergyDensity, p.Magnetisation, p.SpecificHeat, p.Susceptibility}
		if d.HasCorrelationLength() {
			row = append(row, p.CorrelationLength)
		}
		rows = append(rows, row)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for len(row) > 0 && row[len(row)-1] == nil {
			row = row[:len(row)-1]
		}
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
