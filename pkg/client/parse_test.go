package client

import (
	"errors"
	"testing"
)

func TestParseFaceReport(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantFaces int
		wantConf  float64
		wantErr   bool
	}{
		{
			name:      "plain json",
			raw:       `{"faces":[{"box":{"x":0.1,"y":0.2,"w":0.3,"h":0.3},"confidence":0.92}],"description":"a person"}`,
			wantFaces: 1,
			wantConf:  0.92,
		},
		{
			name:      "fenced with trailing comma",
			raw:       "```json\n{\"faces\":[{\"box\":{\"x\":0,\"y\":0,\"w\":1,\"h\":1},\"confidence\":0.5},],}\n```",
			wantFaces: 1,
			wantConf:  0.5,
		},
		{
			name:      "prose around json with comments",
			raw:       "Here you go:\n{\n// none found\n\"faces\": [] /* empty */\n}\nHope it helps",
			wantFaces: 0,
		},
		{
			name:    "no json",
			raw:     "I cannot see any faces.",
			wantErr: true,
		},
		{
			name:    "broken json",
			raw:     `{"faces": [ {"box": }`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseFaceReport(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(report.Faces) != tt.wantFaces {
				t.Fatalf("got %d faces, want %d", len(report.Faces), tt.wantFaces)
			}
			if tt.wantFaces > 0 && report.Faces[0].Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", report.Faces[0].Confidence, tt.wantConf)
			}
		})
	}
}

func TestParseFaceReportNoJSONSentinel(t *testing.T) {
	if _, err := ParseFaceReport("nothing here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}
