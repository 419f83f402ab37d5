package homework

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

const SlotName = "homework"

var ErrInvalidDueDate = errors.New("due date must be formatted as YYYY-MM-DD")

type Homework struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	Class       string    `json:"class"`
	Section     string    `json:"section"`
	DueDate     string    `json:"dueDate"`
	Attachments []string  `json:"attachments"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewHomework contains information needed to post a new Homework.
type NewHomework struct {
	Title       string   `json:"title" validate:"notblank"`
	Description string   `json:"description"`
	Subject     string   `json:"subject" validate:"notblank"`
	Class       string   `json:"class" validate:"notblank"`
	Section     string   `json:"section" validate:"notblank"`
	DueDate     string   `json:"dueDate" validate:"notblank"`
	Attachments []string `json:"attachments"`
	CreatedBy   string   `json:"createdBy" validate:"notblank"`
}

func (nh *NewHomework) Validate() error {
	nh.Title = core.CleanString(nh.Title)
	nh.Description = core.CleanString(nh.Description)
	nh.Subject = core.CleanString(nh.Subject)
	nh.Class = core.CleanString(nh.Class)
	nh.Section = core.CleanString(nh.Section)
	nh.DueDate = core.CleanString(nh.DueDate)
	nh.CreatedBy = core.CleanString(nh.CreatedBy)
	attachments := make([]string, 0, len(nh.Attachments))
	for _, a := range nh.Attachments {
		if a = core.CleanString(a); a != "" {
			attachments = append(attachments, a)
		}
	}
	nh.Attachments = attachments

	if err := core.ValidateStruct(nh); err != nil {
		return err
	}
	if _, err := time.Parse(core.DateLayout, nh.DueDate); err != nil {
		return core.NewValidationError(ErrInvalidDueDate, core.FieldError{Field: "dueDate", Error: ErrInvalidDueDate.Error()})
	}
	return nil
}

// QueryFilter selects homework matching all of its set fields.
type QueryFilter struct {
	Class     string `query:"class"`
	Section   string `query:"section"`
	Subject   string `query:"subject"`
	CreatedBy string `query:"createdBy"`
}

func (qf *QueryFilter) Clean() {
	qf.Class = core.CleanString(qf.Class, true /* lower */)
	qf.Section = core.CleanString(qf.Section, true /* lower */)
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
	qf.CreatedBy = core.CleanString(qf.CreatedBy, true /* lower */)
}

func (qf QueryFilter) Match(h Homework) bool {
	is := func(v, want string) bool {
		return want == "" || core.CleanString(v, true) == want
	}
	return is(h.Class, qf.Class) && is(h.Section, qf.Section) && is(h.Subject, qf.Subject) && is(h.CreatedBy, qf.CreatedBy)
}

type Service struct {
	homework core.Collection[Homework]
	logger   core.Logger
}

func NewService(store core.RecordStore, logger core.Logger) *Service {
	return &Service{homework: core.NewCollection[Homework](store, SlotName), logger: logger}
}

func (svc *Service) Create(ctx context.Context, nh NewHomework) (Homework, error) {
	if err := nh.Validate(); err != nil {
		return Homework{}, err
	}
	hw := Homework{
		ID:          uuid.NewString(),
		Title:       nh.Title,
		Description: nh.Description,
		Subject:     nh.Subject,
		Class:       nh.Class,
		Section:     nh.Section,
		DueDate:     nh.DueDate,
		Attachments: nh.Attachments,
		CreatedBy:   nh.CreatedBy,
		CreatedAt:   core.NowFunc().UTC(),
	}
	_, err := svc.homework.Update(ctx, func(items []Homework) ([]Homework, error) {
		return append(items, hw), nil
	})
	if err != nil {
		return Homework{}, err
	}
	return hw, nil
}

// List returns the homework matching filter, most recently posted first.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Homework, error) {
	items, err := svc.homework.Load(ctx)
	if items, err = core.FailOpen(items, err, svc.logger, "homework: listing"); err != nil {
		return nil, err
	}
	filter.Clean()
	matched := make([]Homework, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if filter.Match(items[i]) {
			matched = append(matched, items[i])
		}
	}
	return matched, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	id = core.CleanString(id)
	_, err := svc.homework.Update(ctx, func(items []Homework) ([]Homework, error) {
		for i, h := range items {
			if h.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, errors.Wrapf(core.ErrNotFound, "homework %q", id)
	})
	return err
}
