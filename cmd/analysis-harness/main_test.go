package main

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/audit_backend/models"
	"github.com/mmdatafocus/audit_backend/sampling"
)

func TestParseMethod(t *testing.T) {
	cases := map[string]models.SamplingMethod{
		"mus":          models.SamplingMethodMUS,
		" Stratified ": models.SamplingMethodStratified,
		"threshold":    models.SamplingMethodThreshold,
	}
	for in, expected := range cases {
		got, err := parseMethod(in)
		if err != nil || got != expected {
			t.Fatalf("%q: expected %s, got %s (%v)", in, expected, got, err)
		}
	}
	if _, err := parseMethod("monetary_unit"); !errors.Is(err, sampling.ErrUnknownSamplingMethod) {
		t.Fatalf("expected ErrUnknownSamplingMethod, got %v", err)
	}
}
