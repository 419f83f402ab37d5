package timetable

import (
	"context"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

// Service manages the weekly timetable of every (class, section).
// Each timetable is its own slot, so editing one class never conflicts with another.
type Service struct {
	store  core.RecordStore
	logger core.Logger
}

func NewService(store core.RecordStore, logger core.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (svc *Service) doc(class, section string) core.Document[Timetable] {
	return core.NewDocument[Timetable](svc.store, Key(class, section))
}

func checkClass(class, section string) error {
	var missing []string
	if core.CleanString(class) == "" {
		missing = append(missing, "class")
	}
	if core.CleanString(section) == "" {
		missing = append(missing, "section")
	}
	if missing != nil {
		return core.MissingFields(missing...)
	}
	return nil
}

// Load returns the timetable of (class, section) and whether it exists.
func (svc *Service) Load(ctx context.Context, class, section string) (Timetable, bool, error) {
	if err := checkClass(class, section); err != nil {
		return Timetable{}, false, err
	}
	tt, found, err := svc.doc(class, section).Load(ctx)
	if err != nil {
		if errors.Is(err, core.ErrStorageCorrupt) {
			svc.logger.Error("timetable: treating corrupt slot as empty", err, map[string]interface{}{"slot": Key(class, section)})
			return Timetable{}, false, nil
		}
		return Timetable{}, false, err
	}
	return tt, found, nil
}

// LoadDay returns the periods of a day; empty if there is no timetable or nothing on that day.
func (svc *Service) LoadDay(ctx context.Context, class, section, day string) ([]Period, error) {
	day, err := NormalizeDay(day)
	if err != nil {
		return nil, err
	}
	tt, _, err := svc.Load(ctx, class, section)
	if err != nil {
		return nil, err
	}
	return tt.Day(day), nil
}

// update is a read-modify-write of the timetable of (class, section), creating it if needed.
// fn returning errNoChange skips the write.
func (svc *Service) update(ctx context.Context, class, section string, fn func(tt *Timetable) error) (Timetable, error) {
	if err := checkClass(class, section); err != nil {
		return Timetable{}, err
	}
	doc := svc.doc(class, section)

	var tt Timetable
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		var (
			found bool
			err   error
		)
		if tt, found, err = doc.Read(b); err != nil {
			return err
		}
		if !found {
			tt = Timetable{Class: core.CleanString(class), Section: core.CleanString(section)}
		}
		if tt.Days == nil {
			tt.Days = make(map[string][]Period)
		}
		if err := fn(&tt); err != nil {
			return err
		}
		tt.UpdatedAt = core.NowFunc().UTC()
		return doc.Stage(b, tt)
	})
	if errors.Is(err, errNoChange) {
		return tt, nil
	}
	if err != nil {
		return Timetable{}, err
	}
	return tt, nil
}

var errNoChange = errors.New("no change")

// UpsertPeriod replaces the period at index, or appends it if index is nil. It returns the day's periods.
func (svc *Service) UpsertPeriod(ctx context.Context, class, section, day string, p Period, index *int) ([]Period, error) {
	day, err := NormalizeDay(day)
	if err != nil {
		return nil, err
	}
	p.Clean()
	if err := core.ValidateStruct(p); err != nil {
		return nil, err
	}

	tt, err := svc.update(ctx, class, section, func(tt *Timetable) error {
		periods := tt.Day(day)
		if index == nil {
			tt.Days[day] = append(periods, p)
			return nil
		}
		if *index < 0 || *index >= len(periods) {
			return errors.Wrapf(core.ErrNotFound, "no period #%d on %s", *index, day)
		}
		periods[*index] = p
		tt.Days[day] = periods
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tt.Day(day), nil
}

// DeletePeriod removes the period at index. It returns the day's periods.
func (svc *Service) DeletePeriod(ctx context.Context, class, section, day string, index int) ([]Period, error) {
	day, err := NormalizeDay(day)
	if err != nil {
		return nil, err
	}

	tt, err := svc.update(ctx, class, section, func(tt *Timetable) error {
		periods := tt.Day(day)
		if index < 0 || index >= len(periods) {
			return errors.Wrapf(core.ErrNotFound, "no period #%d on %s", index, day)
		}
		tt.Days[day] = append(periods[:index:index], periods[index+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tt.Day(day), nil
}

// ClearDay removes every period of a day. Clearing an empty day is a no-op.
func (svc *Service) ClearDay(ctx context.Context, class, section, day string) error {
	day, err := NormalizeDay(day)
	if err != nil {
		return err
	}
	_, err = svc.update(ctx, class, section, func(tt *Timetable) error {
		if len(tt.Days[day]) == 0 {
			return errNoChange
		}
		delete(tt.Days, day)
		return nil
	})
	return err
}

// DeleteTimetable removes the whole timetable of (class, section).
func (svc *Service) DeleteTimetable(ctx context.Context, class, section string) error {
	if err := checkClass(class, section); err != nil {
		return err
	}
	return svc.doc(class, section).Delete(ctx)
}

// LoadTemplate overwrites the timetable of (class, section) with the built-in week.
func (svc *Service) LoadTemplate(ctx context.Context, class, section string) (Timetable, error) {
	if err := checkClass(class, section); err != nil {
		return Timetable{}, err
	}
	tt := Timetable{
		Class:     core.CleanString(class),
		Section:   core.CleanString(section),
		Days:      Template(),
		UpdatedAt: core.NowFunc().UTC(),
	}
	if err := svc.doc(class, section).Save(ctx, tt); err != nil {
		return Timetable{}, err
	}
	return tt, nil
}
