// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TaskSnapshot is the persisted state of one research task, enough to
// resume the convergence loop or to inspect a finished run.
type TaskSnapshot struct {
	TaskID    string    `json:"task_id" yaml:"task_id"`
	Query     string    `json:"query" yaml:"query"`
	Iteration int       `json:"iteration" yaml:"iteration"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// Outline is the latest saved outline version, nil before the first save.
	Outline *Outline `json:"outline,omitempty" yaml:"outline,omitempty"`

	// Evidence holds every item saved for the task, in id order.
	Evidence []EvidenceItem `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// Result is set once the task has finished.
	Result *ResearchResult `json:"result,omitempty" yaml:"result,omitempty"`
}
