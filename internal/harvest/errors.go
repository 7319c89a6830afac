package harvest

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no record exists for a date.
	ErrNotFound = errors.New("harvest record not found")
	// ErrSeasonMismatch means a record's Season is not the year of its RunDate.
	ErrSeasonMismatch = errors.New("season does not match run date")
	// ErrNavigationTimeout means the source page never settled after loading.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrControlNotFound means the date selector did not appear in the DOM.
	ErrControlNotFound = errors.New("date control not found")
	// ErrSubmitControlNotFound means the form's submit control is missing.
	ErrSubmitControlNotFound = errors.New("submit control not found")
)

// Step names a stage of the page interaction.
type Step string

// Steps of the page interaction, in order.
const (
	StepNavigate      Step = "navigate"
	StepLocateControl Step = "locate_control"
	StepSelectDate    Step = "select_date"
	StepSubmit        Step = "submit"
	StepSettle        Step = "settle"
	StepExtract       Step = "extract"
)

// ExtractError reports which step failed while extracting one date.
type ExtractError struct {
	RunDate string
	Step    Step
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.RunDate, e.Step, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
