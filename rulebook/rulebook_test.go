package rulebook

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/shopspring/decimal"
)

func TestDefault_Validates(t *testing.T) {
	rb := Default()
	if err := rb.Validate(); err != nil {
		t.Fatalf("default rulebook invalid: %v", err)
	}
	if len(rb.RiskFactors) != 10 {
		t.Fatalf("expected ten catalogue factors, got %d", len(rb.RiskFactors))
	}
	rb.Holidays[0] = "changed"
	if Default().Holidays[0] != "01-01" {
		t.Fatalf("Default must return a fresh copy")
	}
}

func TestLoad_AcceptsSerializedDefault(t *testing.T) {
	raw, err := json.Marshal(Default())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rb, err := Load(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rb.Version != DefaultVersion || len(rb.RiskFactors) != len(Default().RiskFactors) {
		t.Fatalf("unexpected rulebook %+v", rb)
	}
	if !rb.IsRoundAmount(decimal.NewFromInt(5000)) {
		t.Fatalf("loaded round amount rules do not apply")
	}
}

func TestValidate_RejectsBrokenTables(t *testing.T) {
	cases := map[string]func(rb *Rulebook){
		"missing version": func(rb *Rulebook) { rb.Version = " " },
		"bad holiday":     func(rb *Rulebook) { rb.Holidays = append(rb.Holidays, "13-01") },
		"weight too high": func(rb *Rulebook) { rb.RiskFactors[0].Weight = 6 },
		"unknown category": func(rb *Rulebook) {
			rb.RiskFactors[0].Category = models.RiskCategory("astrology")
		},
		"duplicate factor": func(rb *Rulebook) { rb.RiskFactors = append(rb.RiskFactors, rb.RiskFactors[0]) },
		"tiers out of order": func(rb *Rulebook) {
			rb.Tiers = TierThresholds{Critical: 5, High: 5, Medium: 3}
		},
		"band gap": func(rb *Rulebook) { rb.AmountBands[1].Min = decimal.NewFromInt(1500) },
		"no bands": func(rb *Rulebook) { rb.AmountBands = nil },
	}
	for name, mutate := range cases {
		rb := Default()
		mutate(rb)
		if err := rb.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"version":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadFile(t *testing.T) {
	rb, err := LoadFile("")
	if err != nil || rb.Version != DefaultVersion {
		t.Fatalf("empty path should give the default, got %v (%v)", rb, err)
	}

	custom := Default()
	custom.Version = "2025.2"
	raw, _ := json.Marshal(custom)
	path := filepath.Join(t.TempDir(), "rulebook.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rb, err = LoadFile(path)
	if err != nil || rb.Version != "2025.2" {
		t.Fatalf("expected custom version, got %v (%v)", rb, err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestAmountBand_Contains(t *testing.T) {
	bands := Default().AmountBands
	if !bands[0].Contains(decimal.Zero) || bands[0].Contains(decimal.NewFromInt(1000)) {
		t.Fatalf("first band must be [0, 1000)")
	}
	if !bands[len(bands)-1].Contains(decimal.NewFromInt(10000000)) {
		t.Fatalf("last band must be unbounded")
	}
}

func TestExpectedCounterAreas_IsCaseInsensitive(t *testing.T) {
	rb := Default()
	if got := rb.ExpectedCounterAreas(" Sales "); len(got) != 3 {
		t.Fatalf("expected sales counter areas, got %v", got)
	}
	if rb.ExpectedCounterAreas("equity") != nil {
		t.Fatalf("unconfigured area must have no expectation")
	}
}
