// Package goals stores user-defined metric targets shown on the
// dashboard next to the corresponding live values.
package goals

import "time"

// Direction says which way the metric should move to count as progress.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

type Goal struct {
	ID          int       `json:"id"`
	UserID      string    `json:"-"`
	Metric      string    `json:"metric"`
	Label       string    `json:"label"`
	TargetValue float64   `json:"target_value"`
	Direction   Direction `json:"direction"`
	TargetDate  *string   `json:"target_date"`
	CreatedAt   time.Time `json:"created_at"`
}
