package teacher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/storage/memstore"
	"github.com/royalacademy/backoffice/tests"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newService(t *testing.T) (*Service, *memstore.Store) {
	store := memstore.New()
	return NewService(store, testutil.NewLogger(t)), store
}

func newTeacher(name, email, subject string) NewTeacher {
	return NewTeacher{Name: name, Email: email, Subject: subject, Phone: "555-0100", Class: "8", Section: "A"}
}

func loadAccounts(t *testing.T, svc *Service) []Account {
	accounts, err := svc.accounts.Load(context.Background())
	require.NoError(t, err)
	return accounts
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	testutil.FreezeTime(t, time.UnixMilli(1740000123456).UTC())
	svc, _ := newService(t)

	teacher, creds, err := svc.Create(ctx, newTeacher(" Jane Doe ", "Jane@RoyalAcademy.edu", "Mathematics"))
	require.NoError(t, err)

	assert.Equal(t, "TCH123456", teacher.ID)
	assert.Equal(t, "Jane Doe", teacher.Name)
	assert.Equal(t, "jane@royalacademy.edu", teacher.Email)
	assert.Equal(t, StatusActive, teacher.Status)
	assert.Equal(t, "2025-02-19", teacher.JoinDate)
	assert.Equal(t, Credentials{ID: "TCH123456", Username: "jane@royalacademy.edu", Password: "jane123"}, creds)

	// profile and login account are both written, with the same id and core fields
	teachers, err := svc.List(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []Teacher{teacher}, teachers)

	accounts := loadAccounts(t, svc)
	require.Len(t, accounts, 1)
	acc := accounts[0]
	assert.Equal(t, teacher.ID, acc.ID)
	assert.Equal(t, teacher.ID, acc.TeacherID)
	assert.Equal(t, AccountType, acc.Type)
	assert.Equal(t, "jane@royalacademy.edu", acc.Username)
	assert.Equal(t, []string{teacher.Name, teacher.Email, teacher.Subject, teacher.Class, teacher.Section, teacher.Status},
		[]string{acc.Name, acc.Email, acc.Subject, acc.Class, acc.Section, acc.Status})
	assert.NoError(t, acc.CheckPassword("jane123"))
	assert.NotContains(t, string(acc.PasswordHash), "jane123")
}

func TestService_Create_IDs(t *testing.T) {
	ctx := context.Background()
	testutil.FreezeTime(t, time.UnixMilli(1700000999999))
	svc, _ := newService(t)

	t1, _, err := svc.Create(ctx, newTeacher("Ann Lee", "ann@x.com", "Art"))
	require.NoError(t, err)
	t2, _, err := svc.Create(ctx, newTeacher("Bob Ray", "bob@x.com", "Art"))
	require.NoError(t, err)
	t3, _, err := svc.Create(ctx, newTeacher("Cid Moe", "cid@x.com", "Art"))
	require.NoError(t, err)

	// same millisecond: bumped until free, wrapping around
	assert.Equal(t, "TCH999999", t1.ID)
	assert.Equal(t, "TCH000000", t2.ID)
	assert.Equal(t, "TCH000001", t3.ID)

	nt := newTeacher("Dee Poe", "dee@x.com", "Music")
	nt.EmployeeID = " EMP-42 "
	t4, creds, err := svc.Create(ctx, nt)
	require.NoError(t, err)
	assert.Equal(t, "EMP-42", t4.ID)
	assert.Equal(t, "EMP-42", creds.ID)

	_, _, err = svc.Create(ctx, nt)
	assert.True(t, errors.Is(err, ErrIDExists), "got %v", err)
	assert.True(t, core.IsValidation(err))

	teachers, _ := svc.List(ctx, QueryFilter{})
	assert.Len(t, teachers, 4)
	assert.Len(t, loadAccounts(t, svc), 4)
}

func TestService_Create_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		nt         NewTeacher
		wantFields []string
	}{
		{name: "empty", wantFields: []string{"name", "email", "subject", "class", "section"}},
		{name: "blank name", nt: NewTeacher{Name: "  ", Email: "a@x.com", Subject: "Art", Class: "8", Section: "A"}, wantFields: []string{"name"}},
		{name: "no section", nt: NewTeacher{Name: "Ann", Email: "a@x.com", Subject: "Art", Class: "8"}, wantFields: []string{"section"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)
			_, _, err := svc.Create(ctx, tt.nt)
			require.True(t, errors.Is(err, core.ErrMissingRequiredField), "got %v", err)

			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			fields := make([]string, 0, len(vErr.Fields))
			for _, f := range vErr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)

			teachers, _ := svc.List(ctx, QueryFilter{})
			assert.Empty(t, teachers)
			assert.Empty(t, loadAccounts(t, svc))
		})
	}
}

func TestService_PasswordDerivation(t *testing.T) {
	svc, _ := newService(t)
	_, creds, err := svc.Create(context.Background(), newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)
	assert.Equal(t, "jane123", creds.Password)
}

func TestService_Edit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	teacher, _, err := svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)

	edited, err := svc.Edit(ctx, teacher.ID, UpdateTeacher{Subject: "Physics", Email: "JD@x.com", Phone: " "})
	require.NoError(t, err)
	assert.Equal(t, "Physics", edited.Subject)
	assert.Equal(t, "jd@x.com", edited.Email)
	assert.Equal(t, teacher.Phone, edited.Phone)
	assert.Equal(t, teacher.Name, edited.Name)

	got, err := svc.Get(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, edited, got)

	acc := loadAccounts(t, svc)[0]
	assert.Equal(t, "Physics", acc.Subject)
	assert.Equal(t, "jd@x.com", acc.Username)

	// the password is untouched
	_, err = svc.Authenticate(ctx, "jd@x.com", "jane123")
	assert.NoError(t, err)
}

func TestService_Edit_MatchesAccountByTeacherID(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	teacher, _, err := svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)

	// accounts written by older versions had their own ids
	accounts := loadAccounts(t, svc)
	accounts[0].ID = "AUTH-1"
	require.NoError(t, core.NewCollection[Account](store, SlotAuth).Save(ctx, accounts))

	_, err = svc.Edit(ctx, teacher.ID, UpdateTeacher{Name: "Janet Doe"})
	require.NoError(t, err)
	assert.Equal(t, "Janet Doe", loadAccounts(t, svc)[0].Name)
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, _, err := svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)

	ops := map[string]func(id string) error{
		"edit": func(id string) error {
			_, err := svc.Edit(ctx, id, UpdateTeacher{Name: "x"})
			return err
		},
		"toggleBan": func(id string) error {
			_, err := svc.ToggleBan(ctx, id)
			return err
		},
		"delete": func(id string) error { return svc.Delete(ctx, id) },
		"get": func(id string) error {
			_, err := svc.Get(ctx, id)
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op("TCH-UNKNOWN")
			assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
		})
	}

	teachers, _ := svc.List(ctx, QueryFilter{})
	assert.Len(t, teachers, 1)
	assert.Equal(t, "Jane Doe", teachers[0].Name)
}

func TestService_ToggleBan(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	teacher, _, err := svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)

	banned, err := svc.ToggleBan(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBanned, banned.Status)
	assert.Equal(t, StatusBanned, loadAccounts(t, svc)[0].Status)

	_, err = svc.Authenticate(ctx, "jane@x.com", "jane123")
	assert.Equal(t, ErrBanned, err)

	active, err := svc.ToggleBan(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, active.Status)
	assert.Equal(t, StatusActive, loadAccounts(t, svc)[0].Status)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	jane, _, err := svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)
	nt := newTeacher("Raj Kumar", "raj@x.com", "Hindi")
	nt.EmployeeID = "EMP-7"
	raj, _, err := svc.Create(ctx, nt)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, jane.ID))

	teachers, err := svc.List(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, []Teacher{raj}, teachers)
	accounts := loadAccounts(t, svc)
	require.Len(t, accounts, 1)
	assert.Equal(t, raj.ID, accounts[0].TeacherID)

	_, err = svc.Authenticate(ctx, "jane@x.com", "jane123")
	assert.Equal(t, core.ErrInvalidCredentials, err)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	data := []NewTeacher{
		newTeacher("Jane Doe", "jane@x.com", "Mathematics"),
		newTeacher("Raj Kumar", "raj@x.com", "Hindi"),
		newTeacher("Mary Maths", "mary@x.com", "Science"),
		newTeacher("Omar Ali", "omar@maths.org", "mathematics"),
	}
	for i, nt := range data {
		nt.EmployeeID = string(rune('A' + i))
		_, _, err := svc.Create(ctx, nt)
		require.NoError(t, err)
	}
	_, err := svc.ToggleBan(ctx, "D")
	require.NoError(t, err)

	ids := func(teachers []Teacher) []string {
		out := make([]string, 0, len(teachers))
		for _, t := range teachers {
			out = append(out, t.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{name: "all", filter: QueryFilter{}, want: []string{"A", "B", "C", "D"}},
		{name: "subject, case-insensitive", filter: QueryFilter{Subject: "MATHEMATICS"}, want: []string{"A", "D"}},
		{name: "status", filter: QueryFilter{Status: "banned"}, want: []string{"D"}},
		{name: "search name/email/subject", filter: QueryFilter{Search: "math"}, want: []string{"A", "C", "D"}},
		{name: "search email", filter: QueryFilter{Search: "RAJ@"}, want: []string{"B"}},
		{name: "subject and status", filter: QueryFilter{Subject: "mathematics", Status: "active"}, want: []string{"A"}},
		{name: "all three", filter: QueryFilter{Subject: "mathematics", Status: "active", Search: "omar"}, want: []string{}},
		{name: "no match", filter: QueryFilter{Search: "zzz"}, want: []string{}},
	}
	all, err := svc.List(ctx, QueryFilter{})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))

			// the result is the intersection of each predicate applied to the full list
			var want []string
			for _, teacher := range all {
				if (QueryFilter{Subject: tt.filter.Subject}).Match(teacher) &&
					(QueryFilter{Status: tt.filter.Status}).Match(teacher) &&
					(QueryFilter{Search: tt.filter.Search}).Match(teacher) {
					want = append(want, teacher.ID)
				}
			}
			assert.ElementsMatch(t, want, ids(got))
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	teacher, _, err := svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "email", username: " JANE@x.com", password: "jane123"},
		{name: "id", username: teacher.ID, password: "jane123"},
		{name: "bad password", username: "jane@x.com", password: "jane124", wantErr: core.ErrInvalidCredentials},
		{name: "unknown", username: "joe@x.com", password: "joe123", wantErr: core.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Authenticate(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, teacher, got)
		})
	}
}

func TestService_CorruptSlot(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	require.NoError(t, store.Commit(ctx, core.Write{Name: SlotTeachers, Value: []byte(`{"id":1}`), Version: core.AnyVersion}))

	teachers, err := svc.List(ctx, QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, teachers)

	_, _, err = svc.Create(ctx, newTeacher("Jane Doe", "jane@x.com", "Science"))
	assert.True(t, errors.Is(err, core.ErrStorageCorrupt), "got %v", err)

	slot, err := store.Get(ctx, SlotTeachers)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(slot.Value))
	_, err = store.Get(ctx, SlotAuth)
	assert.True(t, errors.Is(err, core.ErrSlotNotFound))
}
