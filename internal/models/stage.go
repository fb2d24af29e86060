package models

// Stage is one step of the pipeline topology.
type Stage struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}
