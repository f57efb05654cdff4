package store

import (
	"encoding/json"
	"io"
	"os"
)

// ExportData is the JSON shape of an exported run.
type ExportData struct {
	Model     string             `json:"model"`
	Method    string             `json:"method"`
	Component string             `json:"component"`
	Dt        float64            `json:"dt"`
	TEnd      float64            `json:"t_end"`
	Steps     int                `json:"steps"`
	Times     []float64          `json:"times"`
	States    [][]float64        `json:"states"`
	FailedAt  []float64          `json:"failed_at,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run as indented JSON.
func ExportJSON(w io.Writer, model, method string, dt, tEnd float64, tr *Trace) error {
	data := ExportData{
		Model:     model,
		Method:    method,
		Component: tr.Component,
		Dt:        dt,
		TEnd:      tEnd,
		Steps:     tr.Len(),
		Times:     tr.Times,
		States:    tr.States,
		FailedAt:  tr.FailedAt,
		Metrics:   tr.Metrics(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportJSONFile writes a run as indented JSON to a file.
func ExportJSONFile(path, model, method string, dt, tEnd float64, tr *Trace) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, model, method, dt, tEnd, tr)
}
