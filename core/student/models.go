package student

import (
	"time"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

// AccountType tags student login accounts.
const AccountType = "student"

// Attendance statuses
const (
	Present = "present"
	Absent  = "absent"
	Late    = "late"
)

// Remark types
const (
	RemarkGood = "good"
	RemarkBad  = "bad"
)

var (
	ErrInvalidStatus     = errors.New("attendance status must be one of present, absent or late")
	ErrInvalidRemarkType = errors.New("remark type must be good or bad")
	ErrInvalidDate       = errors.New("date must be formatted as YYYY-MM-DD")
	ErrNoStudents        = errors.New("no students in this class")
)

type Student struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	RollNumber  string            `json:"rollNumber"`
	Class       string            `json:"class"`
	Section     string            `json:"section"`
	Email       string            `json:"email"`
	ParentEmail string            `json:"parentEmail"`
	Phone       string            `json:"phone"`
	Image       string            `json:"image"`
	Attendance  []AttendanceEntry `json:"attendance"`
	Remarks     []Remark          `json:"remarks"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (s Student) inClass(class, section string) bool {
	return equalFold(s.Class, class) && equalFold(s.Section, section)
}

type AttendanceEntry struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Remark string `json:"remark,omitempty"`
}

type Remark struct {
	Date    string `json:"date"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Subject string `json:"subject"`
}

// Account is the login copy of a Student. Unlike teacher accounts, it keeps the initial password.
type Account struct {
	ID         string `json:"id"`
	StudentID  string `json:"studentId"`
	Username   string `json:"username"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	RollNumber string `json:"rollNumber"`
	Class      string `json:"class"`
	Section    string `json:"section"`
	Password   string `json:"password"`
}

func newAccount(s Student, password string) Account {
	return Account{
		ID:         s.ID,
		StudentID:  s.ID,
		Username:   core.CleanString(s.Email, true /* lower */),
		Type:       AccountType,
		Name:       s.Name,
		Email:      s.Email,
		RollNumber: s.RollNumber,
		Class:      s.Class,
		Section:    s.Section,
		Password:   password,
	}
}

type Credentials struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name        string `json:"name" validate:"notblank"`
	Email       string `json:"email" validate:"notblank"`
	RollNumber  string `json:"rollNumber" validate:"notblank"`
	Class       string `json:"class" validate:"notblank"`
	Section     string `json:"section" validate:"notblank"`
	ParentEmail string `json:"parentEmail"`
	Phone       string `json:"phone"`
	Image       string `json:"image"`
}

func (ns *NewStudent) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.RollNumber = core.CleanString(ns.RollNumber)
	ns.Class = core.CleanString(ns.Class)
	ns.Section = core.CleanString(ns.Section)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Image = core.CleanString(ns.Image)
	return core.ValidateStruct(ns)
}

// Mark is the status given to one student in an attendance session.
type Mark struct {
	Status string `json:"status"`
	Remark string `json:"remark"`
}

// NewAttendance is one attendance session for a class. Students of the class missing from Marks are present.
type NewAttendance struct {
	Class   string          `json:"class" validate:"notblank"`
	Section string          `json:"section" validate:"notblank"`
	Date    string          `json:"date"`
	TakenBy string          `json:"takenBy"`
	Marks   map[string]Mark `json:"marks"`
}

func (na *NewAttendance) Validate() error {
	na.Class = core.CleanString(na.Class)
	na.Section = core.CleanString(na.Section)
	na.Date = core.CleanString(na.Date)
	na.TakenBy = core.CleanString(na.TakenBy)
	if err := core.ValidateStruct(na); err != nil {
		return err
	}

	if na.Date == "" {
		na.Date = core.Today()
	} else if _, err := time.Parse(core.DateLayout, na.Date); err != nil {
		return core.NewValidationError(ErrInvalidDate, core.FieldError{Field: "date", Error: ErrInvalidDate.Error()})
	}

	marks := make(map[string]Mark, len(na.Marks))
	for id, m := range na.Marks {
		m.Status = core.CleanString(m.Status, true /* lower */)
		m.Remark = core.CleanString(m.Remark)
		switch m.Status {
		case "":
			m.Status = Present
		case Present, Absent, Late:
		default:
			return core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "marks." + id, Error: ErrInvalidStatus.Error()})
		}
		marks[core.CleanString(id)] = m
	}
	na.Marks = marks
	return nil
}

// SessionEntry is the status of one student within an AttendanceRecord.
type SessionEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Remark    string `json:"remark,omitempty"`
}

// AttendanceRecord is one attendance session, as taken for a whole class.
type AttendanceRecord struct {
	ID         string         `json:"id"`
	Class      string         `json:"class"`
	Section    string         `json:"section"`
	Date       string         `json:"date"`
	TakenBy    string         `json:"takenBy"`
	StudentIDs []string       `json:"studentIds"`
	Entries    []SessionEntry `json:"entries"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type NewRemark struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (nr *NewRemark) clean() error {
	nr.Type = core.CleanString(nr.Type, true /* lower */)
	nr.Subject = core.CleanString(nr.Subject)
	nr.Message = core.CleanString(nr.Message)
	switch nr.Type {
	case "":
		nr.Type = RemarkGood
	case RemarkGood, RemarkBad:
	default:
		return core.NewValidationError(ErrInvalidRemarkType, core.FieldError{Field: "type", Error: ErrInvalidRemarkType.Error()})
	}
	return nil
}

// QueryFilter selects students matching all of its set fields.
type QueryFilter struct {
	Class   string `query:"class"`
	Section string `query:"section"`
	Search  string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Class = core.CleanString(qf.Class)
	qf.Section = core.CleanString(qf.Section)
	qf.Search = core.CleanString(qf.Search)
}

func (qf QueryFilter) IsEmpty() bool {
	return qf.Class == "" && qf.Section == "" && qf.Search == ""
}

// Match applies the filter to s. Search is a case-insensitive match on one of Student.Name, Student.Email or
// Student.RollNumber.
func (qf QueryFilter) Match(s Student) bool {
	if qf.Class != "" && !equalFold(s.Class, qf.Class) {
		return false
	}
	if qf.Section != "" && !equalFold(s.Section, qf.Section) {
		return false
	}
	if qf.Search != "" &&
		!core.ContainsFold(s.Name, qf.Search) &&
		!core.ContainsFold(s.Email, qf.Search) &&
		!core.ContainsFold(s.RollNumber, qf.Search) {
		return false
	}
	return true
}

type AttendanceFilter struct {
	Class   string `query:"class"`
	Section string `query:"section"`
	Date    string `query:"date"`
}

func (af *AttendanceFilter) Clean() {
	af.Class = core.CleanString(af.Class)
	af.Section = core.CleanString(af.Section)
	af.Date = core.CleanString(af.Date)
}

func (af AttendanceFilter) Match(r AttendanceRecord) bool {
	return (af.Class == "" || equalFold(r.Class, af.Class)) &&
		(af.Section == "" || equalFold(r.Section, af.Section)) &&
		(af.Date == "" || r.Date == af.Date)
}

func equalFold(a, b string) bool {
	return core.CleanString(a, true) == core.CleanString(b, true)
}
