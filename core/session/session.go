package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/student"
	"github.com/royalacademy/backoffice/core/teacher"
)

// Slot names
const (
	SlotSession   = "session"
	SlotPrincipal = "principal"
)

// Roles
const (
	RolePrincipal = "principal"
	RoleTeacher   = "teacher"
	RoleStudent   = "student"
)

var (
	ErrUnknownRole    = errors.New("role must be one of principal, teacher or student")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrNoPrincipal    = errors.New("no principal account has been set up")
	ErrWrongRole      = errors.New("not allowed for this role")
	ErrPasswordLength = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

var bcryptCost = bcrypt.DefaultCost // lowered in tests

// Flags is who is logged in on the dashboards. Only one session exists at a time.
// It is a UI convention, not a security boundary.
type Flags struct {
	PrincipalAuth bool      `json:"principalAuth"`
	TeacherAuth   bool      `json:"teacherAuth"`
	StudentAuth   bool      `json:"studentAuth"`
	Role          string    `json:"role"`
	ID            string    `json:"id,omitempty"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Subject       string    `json:"subject,omitempty"`
	Class         string    `json:"class,omitempty"`
	Section       string    `json:"section,omitempty"`
	LoggedInAt    time.Time `json:"loggedInAt"`
}

// Identity returns who the session belongs to, for logging.
func (f Flags) Identity() core.Identity {
	return core.Identity{ID: f.ID, Username: f.Role, Email: f.Email}
}

// Principal is the principal's login.
type Principal struct {
	Email        string `json:"email"`
	PasswordHash []byte `json:"passwordHash"`
}

type TeacherAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (teacher.Teacher, error)
}

type StudentAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (student.Student, error)
}

type Service struct {
	flags     core.Document[Flags]
	principal core.Document[Principal]
	teachers  TeacherAuthenticator
	students  StudentAuthenticator
	logger    core.Logger
}

func NewService(store core.RecordStore, teachers TeacherAuthenticator, students StudentAuthenticator, logger core.Logger) *Service {
	return &Service{
		flags:     core.NewDocument[Flags](store, SlotSession),
		principal: core.NewDocument[Principal](store, SlotPrincipal),
		teachers:  teachers,
		students:  students,
		logger:    logger,
	}
}

// Login checks the credentials for role and replaces the current session.
func (svc *Service) Login(ctx context.Context, role, username, password string) (Flags, error) {
	role = core.CleanString(role, true /* lower */)
	username = core.CleanString(username)
	if username == "" || password == "" {
		var missing []string
		if username == "" {
			missing = append(missing, "username")
		}
		if password == "" {
			missing = append(missing, "password")
		}
		return Flags{}, core.MissingFields(missing...)
	}

	flags := Flags{Role: role, LoggedInAt: core.NowFunc().UTC()}
	switch role {
	case RolePrincipal:
		p, err := svc.checkPrincipal(ctx, username, password)
		if err != nil {
			return Flags{}, err
		}
		flags.PrincipalAuth = true
		flags.Email = p.Email
		flags.Name = "Principal"
	case RoleTeacher:
		t, err := svc.teachers.Authenticate(ctx, username, password)
		if err != nil {
			return Flags{}, err
		}
		flags.TeacherAuth = true
		flags.ID, flags.Email, flags.Name = t.ID, t.Email, t.Name
		flags.Subject, flags.Class, flags.Section = t.Subject, t.Class, t.Section
	case RoleStudent:
		s, err := svc.students.Authenticate(ctx, username, password)
		if err != nil {
			return Flags{}, err
		}
		flags.StudentAuth = true
		flags.ID, flags.Email, flags.Name = s.ID, s.Email, s.Name
		flags.Class, flags.Section = s.Class, s.Section
	default:
		return Flags{}, core.NewValidationError(ErrUnknownRole, core.FieldError{Field: "role", Error: ErrUnknownRole.Error()})
	}

	if err := svc.flags.Save(ctx, flags); err != nil {
		return Flags{}, err
	}
	svc.logger.Info("session: logged in", flags.Identity())
	return flags, nil
}

func (svc *Service) checkPrincipal(ctx context.Context, email, password string) (Principal, error) {
	p, found, err := svc.principal.Load(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !found {
		return Principal{}, ErrNoPrincipal
	}
	if p.Email != core.CleanString(email, true /* lower */) {
		return Principal{}, core.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(password)); err != nil {
		return Principal{}, core.ErrInvalidCredentials
	}
	return p, nil
}

func (svc *Service) Logout(ctx context.Context) error {
	return svc.flags.Delete(ctx)
}

// Current returns the current session, or ErrNotLoggedIn. An unreadable session counts as logged out.
func (svc *Service) Current(ctx context.Context) (Flags, error) {
	flags, found, err := svc.flags.Load(ctx)
	if errors.Is(err, core.ErrStorageCorrupt) {
		svc.logger.Error("session: reading flags", err)
		return Flags{}, ErrNotLoggedIn
	}
	if err != nil {
		return Flags{}, err
	}
	if !found {
		return Flags{}, ErrNotLoggedIn
	}
	return flags, nil
}

// Require returns the current session if it belongs to one of roles.
func (svc *Service) Require(ctx context.Context, roles ...string) (Flags, error) {
	flags, err := svc.Current(ctx)
	if err != nil {
		return Flags{}, err
	}
	for _, r := range roles {
		if flags.Role == r {
			return flags, nil
		}
	}
	return Flags{}, ErrWrongRole
}

// SetPrincipal creates or replaces the principal's login.
func (svc *Service) SetPrincipal(ctx context.Context, email, password string) error {
	email = core.CleanString(email, true /* lower */)
	if email == "" || password == "" {
		var missing []string
		if email == "" {
			missing = append(missing, "email")
		}
		if password == "" {
			missing = append(missing, "password")
		}
		return core.MissingFields(missing...)
	}
	if len(password) < minPasswordLength {
		return core.NewValidationError(ErrPasswordLength, core.FieldError{Field: "password", Error: ErrPasswordLength.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if err := svc.principal.Save(ctx, Principal{Email: email, PasswordHash: hash}); err != nil {
		return err
	}
	svc.logger.Info("session: principal login set", core.Identity{Username: RolePrincipal, Email: email})
	return nil
}
