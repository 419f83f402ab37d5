package teacher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/royalacademy/backoffice/core"
)

// Statuses
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// AccountType tags teacher login accounts.
const AccountType = "teacher"

var bcryptCost = bcrypt.DefaultCost // lowered in tests

type Teacher struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Phone    string `json:"phone"`
	Class    string `json:"class"`
	Section  string `json:"section"`
	Status   string `json:"status"`
	JoinDate string `json:"joinDate"`
}

func (t Teacher) IsBanned() bool { return t.Status == StatusBanned }

// Account is the login copy of a Teacher.
type Account struct {
	ID           string `json:"id"`
	TeacherID    string `json:"teacherId"`
	Username     string `json:"username"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Subject      string `json:"subject"`
	Class        string `json:"class"`
	Section      string `json:"section"`
	Status       string `json:"status"`
	PasswordHash []byte `json:"passwordHash"`
}

func newAccount(t Teacher) Account {
	a := Account{ID: t.ID, TeacherID: t.ID, Type: AccountType}
	a.mirror(t)
	return a
}

// mirror copies the fields the account shares with its teacher.
func (a *Account) mirror(t Teacher) {
	a.Username = core.CleanString(t.Email, true /* lower */)
	a.Name = t.Name
	a.Email = t.Email
	a.Subject = t.Subject
	a.Class = t.Class
	a.Section = t.Section
	a.Status = t.Status
}

func (a *Account) belongsTo(id string) bool {
	return a.ID == id || a.TeacherID == id
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcryptCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// Credentials are handed out once, when a teacher is created.
type Credentials struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewTeacher contains information needed to create a new Teacher.
type NewTeacher struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name" validate:"notblank"`
	Email      string `json:"email" validate:"notblank"`
	Subject    string `json:"subject" validate:"notblank"`
	Phone      string `json:"phone"`
	Class      string `json:"class" validate:"notblank"`
	Section    string `json:"section" validate:"notblank"`
}

func (nt *NewTeacher) Validate() error {
	nt.EmployeeID = core.CleanString(nt.EmployeeID)
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Class = core.CleanString(nt.Class)
	nt.Section = core.CleanString(nt.Section)
	return core.ValidateStruct(nt)
}

// UpdateTeacher defines what may be changed on an existing Teacher. Blank fields are left unchanged.
type UpdateTeacher struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Phone   string `json:"phone"`
	Class   string `json:"class"`
	Section string `json:"section"`
}

func (ut UpdateTeacher) apply(t Teacher) Teacher {
	set := func(dst *string, v string) {
		if v = core.CleanString(v); v != "" {
			*dst = v
		}
	}
	set(&t.Name, ut.Name)
	set(&t.Email, core.CleanString(ut.Email, true /* lower */))
	set(&t.Subject, ut.Subject)
	set(&t.Phone, ut.Phone)
	set(&t.Class, ut.Class)
	set(&t.Section, ut.Section)
	return t
}

// QueryFilter selects teachers matching all of its set fields.
type QueryFilter struct {
	Subject string `query:"subject"`
	Status  string `query:"status"`
	Search  string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Subject = core.CleanString(qf.Subject)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

func (qf QueryFilter) IsEmpty() bool {
	return qf.Subject == "" && qf.Status == "" && qf.Search == ""
}

// Match applies the filter to t. Search is a case-insensitive match on one of Teacher.Name, Teacher.Email or Teacher.Subject.
func (qf QueryFilter) Match(t Teacher) bool {
	if qf.Subject != "" && !equalFold(t.Subject, qf.Subject) {
		return false
	}
	if qf.Status != "" && t.Status != qf.Status {
		return false
	}
	if qf.Search != "" &&
		!core.ContainsFold(t.Name, qf.Search) &&
		!core.ContainsFold(t.Email, qf.Search) &&
		!core.ContainsFold(t.Subject, qf.Search) {
		return false
	}
	return true
}

func equalFold(a, b string) bool {
	return core.CleanString(a, true) == core.CleanString(b, true)
}
