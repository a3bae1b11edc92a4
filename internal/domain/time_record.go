package domain

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	msgDescriptionRequired = "Description is required"
	msgDurationPositive    = "Duration must be greater than 0"
	msgDurationTooLarge    = "Duration is too large"
)

// MaxDurationSeconds is the longest duration a record may carry, about 68
// years. Rounding anything beyond it to int64 could overflow.
const MaxDurationSeconds = math.MaxInt32

var validate = validator.New(validator.WithRequiredStructEnabled())

// TimeRecord is one completed timed task.
type TimeRecord struct {
	ID                string    `json:"id"`
	Description       string    `json:"description"`
	DurationInSeconds int64     `json:"durationInSeconds"`
	CreatedAt         time.Time `json:"createdAt"`
	UserID            string    `json:"userId,omitempty"`
}

// NewTimeRecordInput is the raw input submitted by the UI.
type NewTimeRecordInput struct {
	Description       string  `json:"description" validate:"required"`
	DurationInSeconds float64 `json:"durationInSeconds" validate:"gt=0,lte=2147483647"`
}

// Validate trims the description and checks both fields, returning the
// normalised input or a validation *Error listing every failing field.
func (in NewTimeRecordInput) Validate() (NewTimeRecordInput, error) {
	in.Description = strings.TrimSpace(in.Description)

	err := validate.Struct(in)
	if err == nil {
		return in, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return in, err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.StructField() {
		case "Description":
			msgs = append(msgs, msgDescriptionRequired)
		case "DurationInSeconds":
			if fe.Tag() == "lte" {
				msgs = append(msgs, msgDurationTooLarge)
			} else {
				msgs = append(msgs, msgDurationPositive)
			}
		default:
			msgs = append(msgs, fe.Error())
		}
	}
	return in, NewValidationError(msgs...)
}

// RecordFactory builds TimeRecord entities. The zero value uses the wall
// clock and random UUIDs.
type RecordFactory struct {
	Now   func() time.Time
	NewID func() string
}

// Create validates in and returns a new record owned by ownerID (which may be
// empty). Fractional durations are rounded up to whole seconds.
func (f RecordFactory) Create(in NewTimeRecordInput, ownerID string) (TimeRecord, error) {
	v, err := in.Validate()
	if err != nil {
		return TimeRecord{}, err
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	newID := uuid.NewString
	if f.NewID != nil {
		newID = f.NewID
	}

	return TimeRecord{
		ID:                newID(),
		Description:       v.Description,
		DurationInSeconds: int64(math.Ceil(v.DurationInSeconds)),
		CreatedAt:         now().UTC(),
		UserID:            ownerID,
	}, nil
}

// TimeRecordRepository is the port for time record persistence.
// An empty ownerID lists records across all owners.
type TimeRecordRepository interface {
	Save(ctx context.Context, rec TimeRecord) (TimeRecord, error)
	List(ctx context.Context, ownerID string) ([]TimeRecord, error)
}
