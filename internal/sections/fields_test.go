package sections

import "testing"

func TestExtractFields(t *testing.T) {
	fs := ExtractFields(`<p>{{ CHECK_DATE }} {{auditor_name}} {{WORK_SUMMARY}} {{check_date}} {{ bad token }}</p>`)
	if len(fs) != 3 {
		t.Fatalf("expected 3 fields, got %d: %+v", len(fs), fs)
	}
	want := []struct {
		id, label, input, anchor string
	}{
		{"check_date", "CHECK DATE", InputDate, "{{CHECK_DATE}}"},
		{"auditor_name", "AUDITOR NAME", InputText, "{{auditor_name}}"},
		{"work_summary", "WORK SUMMARY", InputTextarea, "{{WORK_SUMMARY}}"},
	}
	for i, w := range want {
		f := fs[i]
		if f.ID != w.id || f.Label != w.label || f.InputType != w.input || f.Anchor.Placeholder != w.anchor {
			t.Errorf("field %d: %+v", i, f)
		}
	}
}

func TestGuessInputType(t *testing.T) {
	cases := map[string]string{
		"riqi":             InputDate,
		"开始日期":             InputDate,
		"CONTENT":          InputTextarea,
		"问题描述":             InputTextarea,
		"summary_date":     InputTextarea,
		"DEPARTMENT_NAME":  InputText,
	}
	for in, want := range cases {
		if got := GuessInputType(in); got != want {
			t.Errorf("GuessInputType(%q)=%s want %s", in, got, want)
		}
	}
}
