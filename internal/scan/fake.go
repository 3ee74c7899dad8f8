package scan

import "context"

// FakeScanner is a test double that returns scripted results.
type FakeScanner struct {
	// Results contains scripted scan outcomes.
	// Each call to Scan consumes the next one; the last repeats.
	Results []Result

	// ScanError, if set, will be returned by Scan.
	ScanError error

	// Calls counts Scan invocations.
	Calls int

	index int
}

// NewFakeScanner creates a FakeScanner that always reports aps.
func NewFakeScanner(aps ...AccessPoint) *FakeScanner {
	return &FakeScanner{Results: []Result{{APs: aps, Total: len(aps)}}}
}

// Scan returns the next scripted result, capped at max.
func (f *FakeScanner) Scan(_ context.Context, max int) (Result, error) {
	f.Calls++
	if f.ScanError != nil {
		return Result{}, f.ScanError
	}
	if len(f.Results) == 0 {
		return Result{}, nil
	}

	r := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return Capture(r.APs, max), nil
}
