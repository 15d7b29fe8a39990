// Package roster exports stored patient registrations for the front desk.
package roster

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"
	"vocacare-intake-go/internal/aggregator"
	"vocacare-intake-go/internal/logger"
	"vocacare-intake-go/internal/types"
)

const (
	PatientsSheet = "Patients"
	SummarySheet  = "Summary"
)

// Headers are the export columns, in order.
var Headers = []string{
	"Name",
	"Age",
	"Gender",
	"Contact",
	"Address",
	"Reason for Visit",
	"Preferred Doctor",
	"Medical History",
	"Emergency Contact",
	"Appointment Preference",
	"Conversation ID",
	"Call Duration (secs)",
	"Source",
	"Created At",
	"Status",
}

func row(d types.PatientDocument) []any {
	duration := any("")
	if d.CallDuration != nil {
		duration = *d.CallDuration
	}
	return []any{
		cellValue(d.Name),
		cellValue(d.Age),
		cellValue(d.Gender),
		cellValue(d.Contact),
		cellValue(d.Address),
		cellValue(d.Reason),
		cellValue(d.PreferredDoctor),
		cellValue(d.MedicalHistory),
		cellValue(d.EmergencyContact),
		cellValue(d.AppointmentPreference),
		d.ConversationID,
		duration,
		aggregator.SourceOf(d),
		d.CreatedAt,
		aggregator.StatusOf(d),
	}
}

// cellValue writes numbers as numbers and everything else as text.
func cellValue(f types.FieldValue) any {
	if n, ok := f.Value().(json.Number); ok {
		if v, err := n.Float64(); err == nil {
			return v
		}
	}
	return f.String()
}

// WriteWorkbook saves docs to an .xlsx file with a patients sheet and a
// summary sheet. A nil log discards output.
func WriteWorkbook(path string, docs []types.PatientDocument, log *logger.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	entry := log.WithField("component", "roster.workbook").WithField("path", path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PatientsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, PatientsSheet, 1, toAny(Headers)); err != nil {
		return err
	}
	for i, d := range docs {
		if err := setRow(f, PatientsSheet, i+2, row(d)); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(PatientsSheet, "A", "O", 22); err != nil {
		return fmt.Errorf("set widths: %w", err)
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	for i, r := range summaryRows(aggregator.Aggregate(docs)) {
		if err := setRow(f, SummarySheet, i+1, r); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		entry.WithError(err).Error("save failed")
		return fmt.Errorf("save workbook: %w", err)
	}
	entry.WithField("patients", len(docs)).Debug("roster workbook written")
	return nil
}

// WriteCSV writes the same columns as the workbook's patients sheet.
func WriteCSV(w io.Writer, docs []types.PatientDocument) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	for _, d := range docs {
		cells := row(d)
		rec := make([]string, len(cells))
		for i, c := range cells {
			rec[i] = formatCell(c)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func summaryRows(ins aggregator.Insight) [][]any {
	rows := [][]any{
		{"Total patients", ins.TotalPatients},
		{"Average call duration (secs)", ins.AvgCallDurationSecs},
		{},
		{"Gender", "Patients"},
	}
	rows = append(rows, countRows(ins.ByGender)...)
	rows = append(rows, []any{}, []any{"Preferred doctor", "Patients"})
	rows = append(rows, countRows(ins.ByPreferredDoctor)...)
	rows = append(rows, []any{}, []any{"Status", "Patients"})
	rows = append(rows, countRows(ins.ByStatus)...)
	return rows
}

// countRows sorts by count, then name.
func countRows(m map[string]int) [][]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make([][]any, len(keys))
	for i, k := range keys {
		out[i] = []any{k, m[k]}
	}
	return out
}

func setRow(f *excelize.File, sheet string, n int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, n, err)
	}
	return nil
}

func formatCell(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
