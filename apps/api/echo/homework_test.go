package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core/homework"
	"github.com/royalacademy/backoffice/core/session"
)

func Test_homeworkApi(t *testing.T) {
	d := setup(t)
	jane := loginAsTeacher(t, d)

	rec := do(d.app, http.MethodPost, "/v1/homework", []byte(`{"title": "Fractions", "subject": "Maths", "class": "10", "section": "A", "dueDate": "next week"}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"dueDate": homework.ErrInvalidDueDate.Error()}),
	}, rec)

	post := func(title, class, section string) homework.Homework {
		rec := do(d.app, http.MethodPost, "/v1/homework", marchallObj(t, homework.NewHomework{
			Title: title, Subject: "Maths", Class: class, Section: section, DueDate: "2025-03-10",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var hw homework.Homework
		unmarchall(t, rec, &hw)
		return hw
	}
	fractions := post("Fractions", "10", "A")
	assert.Equal(t, jane.Name, fractions.CreatedBy)
	post("Vectors", "9", "B")
	decimals := post("Decimals", "10", "A")

	list := func(query string) []string {
		rec := do(d.app, http.MethodGet, "/v1/homework"+query)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []homework.Homework
		unmarchall(t, rec, &items)
		titles := make([]string, 0, len(items))
		for _, hw := range items {
			titles = append(titles, hw.Title)
		}
		return titles
	}

	assert.Equal(t, []string{"Decimals", "Vectors", "Fractions"}, list(""))
	assert.Equal(t, []string{"Decimals", "Fractions"}, list("?class=10&section=a"))

	// students only see their own class, whatever they ask for
	rec = do(d.app, http.MethodPost, "/v1/students", []byte(`{"name": "Sam Lee", "email": "sam@example.com", "rollNumber": "1", "class": "10", "section": "A"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loginAs(t, d.app, session.RoleStudent, "sam@example.com", "sam123")
	assert.Equal(t, []string{"Decimals", "Fractions"}, list("?class=9&section=B"))
	assert.Equal(t, http.StatusForbidden, do(d.app, http.MethodDelete, "/v1/homework/"+decimals.ID).Code)

	loginAsPrincipal(t, d.app)
	assert.Equal(t, http.StatusNoContent, do(d.app, http.MethodDelete, "/v1/homework/"+decimals.ID).Code)
	assert.Equal(t, http.StatusNotFound, do(d.app, http.MethodDelete, "/v1/homework/"+decimals.ID).Code)
	assert.Equal(t, []string{"Vectors", "Fractions"}, list(""))
}
