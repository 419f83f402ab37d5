package student

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

// Slot names
const (
	SlotStudents   = "students"
	SlotAuth       = "studentsAuth"
	SlotAttendance = "attendance"
)

// IDPrefix prefixes generated student ids.
const IDPrefix = "STU"

// Service owns the student profiles, their login accounts and the attendance sessions.
type Service struct {
	store      core.RecordStore
	students   core.Collection[Student]
	accounts   core.Collection[Account]
	attendance core.Collection[AttendanceRecord]
	logger     core.Logger
}

func NewService(store core.RecordStore, logger core.Logger) *Service {
	return &Service{
		store:      store,
		students:   core.NewCollection[Student](store, SlotStudents),
		accounts:   core.NewCollection[Account](store, SlotAuth),
		attendance: core.NewCollection[AttendanceRecord](store, SlotAttendance),
		logger:     logger,
	}
}

func indexOf(students []Student, id string) int {
	for i, s := range students {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func notFound(id string) error {
	return errors.Wrapf(core.ErrNotFound, "student %q", id)
}

// Create adds a student and its login account.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, Credentials, error) {
	if err := ns.Validate(); err != nil {
		return Student{}, Credentials{}, err
	}

	password := core.DerivePassword(ns.Name)
	var student Student
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		students, err := svc.students.Read(b)
		if err != nil {
			return err
		}
		accounts, err := svc.accounts.Read(b)
		if err != nil {
			return err
		}

		student = Student{
			ID:          nextID(students),
			Name:        ns.Name,
			RollNumber:  ns.RollNumber,
			Class:       ns.Class,
			Section:     ns.Section,
			Email:       ns.Email,
			ParentEmail: ns.ParentEmail,
			Phone:       ns.Phone,
			Image:       ns.Image,
			Attendance:  []AttendanceEntry{},
			Remarks:     []Remark{},
			CreatedAt:   core.NowFunc().UTC(),
		}
		if err := svc.students.Stage(b, append(students, student)); err != nil {
			return err
		}
		return svc.accounts.Stage(b, append(accounts, newAccount(student, password)))
	})
	if err != nil {
		return Student{}, Credentials{}, err
	}
	return student, Credentials{ID: student.ID, Username: student.Email, Password: password}, nil
}

// nextID returns STU<unix time in milliseconds>, bumped until it is not taken.
func nextID(students []Student) string {
	taken := make(map[string]bool, len(students))
	for _, s := range students {
		taken[s.ID] = true
	}
	for n := core.NowFunc().UnixMilli(); ; n++ {
		if id := IDPrefix + strconv.FormatInt(n, 10); !taken[id] {
			return id
		}
	}
}

// RecordAttendance marks every student of the class. The session record and the students' own attendance lists
// are written together.
func (svc *Service) RecordAttendance(ctx context.Context, na NewAttendance) (AttendanceRecord, error) {
	if err := na.Validate(); err != nil {
		return AttendanceRecord{}, err
	}

	var record AttendanceRecord
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		students, err := svc.students.Read(b)
		if err != nil {
			return err
		}
		sessions, err := svc.attendance.Read(b)
		if err != nil {
			return err
		}

		record = AttendanceRecord{
			ID:         uuid.NewString(),
			Class:      na.Class,
			Section:    na.Section,
			Date:       na.Date,
			TakenBy:    na.TakenBy,
			StudentIDs: []string{},
			Entries:    []SessionEntry{},
			CreatedAt:  core.NowFunc().UTC(),
		}
		used := 0
		for i := range students {
			s := &students[i]
			if !s.inClass(na.Class, na.Section) {
				continue
			}
			m, ok := na.Marks[s.ID]
			if ok {
				used++
			} else {
				m.Status = Present
			}
			s.Attendance = append(s.Attendance, AttendanceEntry{Date: na.Date, Status: m.Status, Remark: m.Remark})
			record.StudentIDs = append(record.StudentIDs, s.ID)
			record.Entries = append(record.Entries, SessionEntry{StudentID: s.ID, Name: s.Name, Status: m.Status, Remark: m.Remark})
		}
		if len(record.StudentIDs) == 0 {
			return core.NewValidationError(ErrNoStudents, core.FieldError{Field: "class", Error: ErrNoStudents.Error()})
		}
		if used < len(na.Marks) {
			svc.logger.Warn("student: attendance marks for students outside the class were ignored", map[string]interface{}{
				"class": na.Class, "section": na.Section, "date": na.Date,
			})
		}

		if err := svc.students.Stage(b, students); err != nil {
			return err
		}
		return svc.attendance.Stage(b, append(sessions, record))
	})
	if err != nil {
		return AttendanceRecord{}, err
	}
	return record, nil
}

// AddRemark appends a remark, dated today, to a student.
func (svc *Service) AddRemark(ctx context.Context, studentID string, nr NewRemark) (Remark, error) {
	studentID = core.CleanString(studentID)
	if err := nr.clean(); err != nil {
		return Remark{}, err
	}
	var missing []string
	if studentID == "" {
		missing = append(missing, "studentId")
	}
	if nr.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return Remark{}, core.MissingFields(missing...)
	}

	remark := Remark{Date: core.Today(), Type: nr.Type, Message: nr.Message, Subject: nr.Subject}
	err := core.RunBatch(ctx, svc.store, func(b *core.Batch) error {
		students, err := svc.students.Read(b)
		if err != nil {
			return err
		}
		i := indexOf(students, studentID)
		if i < 0 {
			return notFound(studentID)
		}
		students[i].Remarks = append(students[i].Remarks, remark)
		return svc.students.Stage(b, students)
	})
	if err != nil {
		return Remark{}, err
	}
	return remark, nil
}

// List returns the students matching filter, in creation order.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Student, error) {
	students, err := svc.students.Load(ctx)
	if students, err = core.FailOpen(students, err, svc.logger, "student: listing"); err != nil {
		return nil, err
	}
	filter.Clean()
	if filter.IsEmpty() {
		return students, nil
	}
	matched := make([]Student, 0, len(students))
	for _, s := range students {
		if filter.Match(s) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	students, err := svc.students.Load(ctx)
	if err != nil {
		return Student{}, err
	}
	id = core.CleanString(id)
	if i := indexOf(students, id); i >= 0 {
		return students[i], nil
	}
	return Student{}, notFound(id)
}

// ListAttendance returns the attendance sessions matching filter, oldest first.
func (svc *Service) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]AttendanceRecord, error) {
	sessions, err := svc.attendance.Load(ctx)
	if sessions, err = core.FailOpen(sessions, err, svc.logger, "student: listing attendance"); err != nil {
		return nil, err
	}
	filter.Clean()
	matched := make([]AttendanceRecord, 0, len(sessions))
	for _, r := range sessions {
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// Authenticate checks a login (email or student id) against the login accounts.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (Student, error) {
	accounts, err := svc.accounts.Load(ctx)
	if err != nil {
		return Student{}, err
	}
	username = core.CleanString(username, true /* lower */)
	for _, a := range accounts {
		if a.Username != username && !strings.EqualFold(a.StudentID, username) {
			continue
		}
		if a.Password != password {
			return Student{}, core.ErrInvalidCredentials
		}
		return svc.Get(ctx, a.StudentID)
	}
	return Student{}, core.ErrInvalidCredentials
}
