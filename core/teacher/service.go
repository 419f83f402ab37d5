package teacher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

// Slot names
const (
	SlotTeachers = "teachers"
	SlotAuth     = "teachersAuth"
)

// IDPrefix prefixes generated teacher ids.
const IDPrefix = "TCH"

var (
	ErrIDExists = errors.New("a teacher with this id already exists")
	ErrBanned   = errors.New("this teacher account is banned")
)

// Service owns the teacher profiles and their login accounts.
// Both collections are always written together, in the same batch.
type Service struct {
	store    core.RecordStore
	teachers core.Collection[Teacher]
	accounts core.Collection[Account]
	logger   core.Logger
}

func NewService(store core.RecordStore, logger core.Logger) *Service {
	return &Service{
		store:    store,
		teachers: core.NewCollection[Teacher](store, SlotTeachers),
		accounts: core.NewCollection[Account](store, SlotAuth),
		logger:   logger,
	}
}

// readAll reads both collections within a batch.
func (svc *Service) readAll(b *core.Batch) ([]Teacher, []Account, error) {
	teachers, err := svc.teachers.Read(b)
	if err != nil {
		return nil, nil, err
	}
	accounts, err := svc.accounts.Read(b)
	if err != nil {
		return nil, nil, err
	}
	return teachers, accounts, nil
}

func (svc *Service) stageAll(b *core.Batch, teachers []Teacher, accounts []Account) error {
	if err := svc.teachers.Stage(b, teachers); err != nil {
		return err
	}
	return svc.accounts.Stage(b, accounts)
}

func indexOf(teachers []Teacher, id string) int {
	for i, t := range teachers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func notFound(id string) error {
	return errors.Wrapf(core.ErrNotFound, "teacher %q", id)
}

// Create adds a teacher and its login account. The generated password is only ever returned here.
func (svc *Service) Create(ctx context.Context, nt NewTeacher) (Teacher, Credentials, error) {
	if err := nt.Validate(); err != nil {
		return Teacher{}, Credentials{}, err
	}

	password := core.DerivePassword(nt.Name)
	var (
		teacher Teacher
		account Account
	)
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		teachers, accounts, err := svc.readAll(b)
		if err != nil {
			return err
		}

		id := nt.EmployeeID
		if id != "" {
			if indexOf(teachers, id) >= 0 {
				return core.NewValidationError(ErrIDExists, core.FieldError{Field: "employeeId", Error: ErrIDExists.Error()})
			}
		} else {
			id = nextID(teachers)
		}

		teacher = Teacher{
			ID:       id,
			Name:     nt.Name,
			Email:    nt.Email,
			Subject:  nt.Subject,
			Phone:    nt.Phone,
			Class:    nt.Class,
			Section:  nt.Section,
			Status:   StatusActive,
			JoinDate: core.Today(),
		}
		account = newAccount(teacher)
		if err := account.SetPassword(password); err != nil {
			return errors.Wrap(err, "hashing password")
		}

		accounts = removeAccounts(accounts, id) // stale copy left by an older version
		return svc.stageAll(b, append(teachers, teacher), append(accounts, account))
	})
	if err != nil {
		return Teacher{}, Credentials{}, err
	}
	return teacher, Credentials{ID: teacher.ID, Username: account.Username, Password: password}, nil
}

// nextID returns TCH<last 6 digits of the current time>, bumped until it is not taken.
func nextID(teachers []Teacher) string {
	taken := make(map[string]bool, len(teachers))
	for _, t := range teachers {
		taken[t.ID] = true
	}
	suffix := core.TimestampSuffix(6)
	n, _ := strconv.Atoi(suffix)
	for {
		id := IDPrefix + fmt.Sprintf("%06d", n)
		if !taken[id] {
			return id
		}
		n = (n + 1) % 1000000
	}
}

func removeAccounts(accounts []Account, id string) []Account {
	kept := accounts[:0]
	for _, a := range accounts {
		if !a.belongsTo(id) {
			kept = append(kept, a)
		}
	}
	return kept
}

// modify runs fn on the teacher `id` and mirrors the result to its login account.
func (svc *Service) modify(ctx context.Context, id string, fn func(t Teacher) Teacher) (Teacher, error) {
	var teacher Teacher
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		teachers, accounts, err := svc.readAll(b)
		if err != nil {
			return err
		}
		i := indexOf(teachers, id)
		if i < 0 {
			return notFound(id)
		}
		teacher = fn(teachers[i])
		teachers[i] = teacher

		var mirrored bool
		for j := range accounts {
			if accounts[j].belongsTo(id) {
				accounts[j].mirror(teacher)
				mirrored = true
			}
		}
		if !mirrored {
			svc.logger.Warn("teacher: no login account to update", map[string]interface{}{"teacherId": id})
		}
		return svc.stageAll(b, teachers, accounts)
	})
	if err != nil {
		return Teacher{}, err
	}
	return teacher, nil
}

// Edit updates a teacher's profile and login account.
func (svc *Service) Edit(ctx context.Context, id string, ut UpdateTeacher) (Teacher, error) {
	return svc.modify(ctx, core.CleanString(id), ut.apply)
}

// ToggleBan switches a teacher between active and banned, on the profile and the login account.
func (svc *Service) ToggleBan(ctx context.Context, id string) (Teacher, error) {
	return svc.modify(ctx, core.CleanString(id), func(t Teacher) Teacher {
		if t.IsBanned() {
			t.Status = StatusActive
		} else {
			t.Status = StatusBanned
		}
		return t
	})
}

// Delete removes a teacher and its login account.
func (svc *Service) Delete(ctx context.Context, id string) error {
	id = core.CleanString(id)
	return core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		teachers, accounts, err := svc.readAll(b)
		if err != nil {
			return err
		}
		i := indexOf(teachers, id)
		if i < 0 {
			return notFound(id)
		}
		teachers = append(teachers[:i], teachers[i+1:]...)
		return svc.stageAll(b, teachers, removeAccounts(accounts, id))
	})
}

// List returns the teachers matching filter, in creation order.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Teacher, error) {
	teachers, err := svc.teachers.Load(ctx)
	if teachers, err = core.FailOpen(teachers, err, svc.logger, "teacher: listing"); err != nil {
		return nil, err
	}
	filter.Clean()
	if filter.IsEmpty() {
		return teachers, nil
	}
	matched := make([]Teacher, 0, len(teachers))
	for _, t := range teachers {
		if filter.Match(t) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Teacher, error) {
	teachers, err := svc.teachers.Load(ctx)
	if err != nil {
		return Teacher{}, err
	}
	id = core.CleanString(id)
	if i := indexOf(teachers, id); i >= 0 {
		return teachers[i], nil
	}
	return Teacher{}, notFound(id)
}

// Authenticate checks a login (email or teacher id) against the login accounts.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (Teacher, error) {
	accounts, err := svc.accounts.Load(ctx)
	if err != nil {
		return Teacher{}, err
	}
	username = core.CleanString(username, true /* lower */)
	for _, a := range accounts {
		if a.Username != username && !strings.EqualFold(a.TeacherID, username) {
			continue
		}
		if err := a.CheckPassword(password); err != nil {
			return Teacher{}, core.ErrInvalidCredentials
		}
		if a.Status == StatusBanned {
			return Teacher{}, ErrBanned
		}
		return svc.Get(ctx, a.TeacherID)
	}
	return Teacher{}, core.ErrInvalidCredentials
}
