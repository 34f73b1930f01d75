package report

import (
	"errors"
	"testing"
)

func TestResolveRange(t *testing.T) {
	tests := []struct {
		name       string
		q          RangeQuery
		wantFrom   string
		wantTo     string
		singleDay  bool
		wantErr    error
		wantSelect string
	}{
		{
			name:       "single date",
			q:          RangeQuery{Date: "2024-03-01"},
			wantFrom:   "2024-03-01T00:00:00Z",
			wantTo:     "2024-03-01T23:59:59Z",
			singleDay:  true,
			wantSelect: "01/03/2024",
		},
		{
			name:     "explicit range with times",
			q:        RangeQuery{FromDate: "2024-03-01", ToDate: "2024-03-03", FromTime: "06:30", ToTime: "18:00"},
			wantFrom: "2024-03-01T06:30:00Z",
			wantTo:   "2024-03-03T18:00:59Z",
		},
		{
			name:       "only toDate copies to fromDate",
			q:          RangeQuery{ToDate: "2024-03-05"},
			wantFrom:   "2024-03-05T00:00:00Z",
			wantTo:     "2024-03-05T23:59:59Z",
			singleDay:  true,
			wantSelect: "05/03/2024",
		},
		{
			name:       "only fromDate copies to toDate",
			q:          RangeQuery{FromDate: "2024-03-05", ToTime: "12:00"},
			wantFrom:   "2024-03-05T00:00:00Z",
			wantTo:     "2024-03-05T12:00:59Z",
			singleDay:  true,
			wantSelect: "05/03/2024",
		},
		{
			name:     "date ignored when fromDate given",
			q:        RangeQuery{Date: "2024-01-01", FromDate: "2024-03-01", ToDate: "2024-03-02"},
			wantFrom: "2024-03-01T00:00:00Z",
			wantTo:   "2024-03-02T23:59:59Z",
		},
		{
			name:       "malformed times fall back to defaults",
			q:          RangeQuery{Date: "2024-03-01", FromTime: "6:30", ToTime: "noon"},
			wantFrom:   "2024-03-01T00:00:00Z",
			wantTo:     "2024-03-01T23:59:59Z",
			singleDay:  true,
			wantSelect: "01/03/2024",
		},
		{
			name:    "nothing given",
			q:       RangeQuery{FromTime: "10:00"},
			wantErr: ErrMissingDate,
		},
		{
			name:    "invalid calendar date",
			q:       RangeQuery{Date: "2024-02-30"},
			wantErr: ErrInvalidDate,
		},
		{
			name:    "not a date",
			q:       RangeQuery{FromDate: "01/03/2024"},
			wantErr: ErrInvalidDate,
		},
		{
			name:    "inverted range",
			q:       RangeQuery{FromDate: "2024-03-02", ToDate: "2024-03-01"},
			wantErr: ErrInvertedRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRange(tt.q)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.FromISO() != tt.wantFrom {
				t.Errorf("from = %s, want %s", got.FromISO(), tt.wantFrom)
			}
			if got.ToISO() != tt.wantTo {
				t.Errorf("to = %s, want %s", got.ToISO(), tt.wantTo)
			}
			if got.SingleDay() != tt.singleDay {
				t.Errorf("SingleDay = %v, want %v", got.SingleDay(), tt.singleDay)
			}
			if tt.singleDay && got.SelectedDate() != tt.wantSelect {
				t.Errorf("SelectedDate = %q, want %q", got.SelectedDate(), tt.wantSelect)
			}
		})
	}
}
