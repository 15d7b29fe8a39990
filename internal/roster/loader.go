package roster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"vocacare-intake-go/internal/types"
)

// Load reads an exported workbook back. Columns are found by header text so
// reordered or hand-edited sheets still load; unknown columns are ignored.
func Load(path string) ([]types.PatientDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheet := PatientsSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	cols := map[int]func(*types.PatientDocument, string){}
	for i, h := range rows[0] {
		if set := columnSetter(h); set != nil {
			cols[i] = set
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no known columns in sheet %q", sheet)
	}

	var out []types.PatientDocument
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		var d types.PatientDocument
		for i, cell := range r {
			if set, ok := cols[i]; ok {
				set(&d, strings.TrimSpace(cell))
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func columnSetter(header string) func(*types.PatientDocument, string) {
	text := func(dst func(*types.PatientDocument) *types.FieldValue) func(*types.PatientDocument, string) {
		return func(d *types.PatientDocument, v string) {
			if v != "" {
				*dst(d) = types.Text(v)
			}
		}
	}
	h := strings.ToLower(strings.TrimSpace(header))
	switch {
	case h == "name":
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.Name })
	case h == "age":
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.Age })
	case h == "gender":
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.Gender })
	case h == "contact":
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.Contact })
	case h == "address":
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.Address })
	case strings.HasPrefix(h, "reason"):
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.Reason })
	case strings.Contains(h, "doctor"):
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.PreferredDoctor })
	case strings.Contains(h, "history"):
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.MedicalHistory })
	case strings.Contains(h, "emergency"):
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.EmergencyContact })
	case strings.Contains(h, "appointment"):
		return text(func(d *types.PatientDocument) *types.FieldValue { return &d.AppointmentPreference })
	case strings.Contains(h, "conversation"):
		return func(d *types.PatientDocument, v string) { d.ConversationID = v }
	case strings.Contains(h, "duration"):
		return func(d *types.PatientDocument, v string) {
			if secs, err := strconv.ParseFloat(v, 64); err == nil {
				d.CallDuration = &secs
			}
		}
	case h == "source":
		return func(d *types.PatientDocument, v string) { d.Source = v }
	case strings.HasPrefix(h, "created"):
		return func(d *types.PatientDocument, v string) { d.CreatedAt = v }
	case h == "status":
		return func(d *types.PatientDocument, v string) { d.Status = v }
	}
	return nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
