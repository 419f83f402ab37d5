package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/royalacademy/backoffice/apps/api/echo"
	"github.com/royalacademy/backoffice/core/timetable"
)

func dayData(t *testing.T, day string, warnings []timetable.Overlap, periods ...timetable.Period) []byte {
	if periods == nil {
		periods = []timetable.Period{}
	}
	if warnings == nil {
		warnings = []timetable.Overlap{}
	}
	return marchallObj(t, DayResponse{Day: day, Periods: periods, Warnings: warnings})
}

func Test_timetableApi_periods(t *testing.T) {
	d := setup(t)
	const path = "/v1/timetables/10/A/monday"

	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errLoggedOut)}, do(d.app, http.MethodGet, path))

	loginAsTeacher(t, d)

	maths := timetable.Period{Time: "9:00-9:45", Subject: "Maths", Teacher: "Jane Doe", Room: "101"}
	physics := timetable.Period{Time: "9:30-10:15", Subject: "Physics", Room: "102"}
	english := timetable.Period{Time: "10:30-11:15", Subject: "English"}
	index := func(i int) *int { return &i }

	runHTTPTests(t, d.app, []httpTest{
		{name: "empty day", path: path, wantCode: http.StatusOK, wantData: dayData(t, "Monday", nil)},
		{
			name: "unknown day", path: "/v1/timetables/10/A/funday", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"day": "must be a day from Monday to Saturday"}),
		},
		{
			name: "missing subject", method: http.MethodPost, path: path, body: []byte(`{"time": "9:00-9:45"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"subject": "this field is required"}),
		},
		{
			name: "append", method: http.MethodPost, path: path, body: marchallObj(t, PeriodRequest{Period: maths}),
			wantCode: http.StatusOK, wantData: dayData(t, "Monday", nil, maths),
		},
		{
			name: "append overlapping", method: http.MethodPost, path: path, body: marchallObj(t, PeriodRequest{Period: physics}),
			wantCode: http.StatusOK,
			wantData: dayData(t, "Monday", []timetable.Overlap{{First: 0, Second: 1, Time: physics.Time}}, maths, physics),
		},
		{
			name: "replace", method: http.MethodPost, path: path, body: marchallObj(t, PeriodRequest{Period: english, Index: index(1)}),
			wantCode: http.StatusOK, wantData: dayData(t, "Monday", nil, maths, english),
		},
		{
			name: "replace out of range", method: http.MethodPost, path: path, body: marchallObj(t, PeriodRequest{Period: english, Index: index(5)}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "read back (any case)", path: "/v1/timetables/10/A/MONDAY", wantCode: http.StatusOK, wantData: dayData(t, "Monday", nil, maths, english)},
		{name: "delete period", method: http.MethodDelete, path: path + "/0", wantCode: http.StatusOK, wantData: dayData(t, "Monday", nil, english)},
		{name: "delete missing period", method: http.MethodDelete, path: path + "/3", wantCode: http.StatusNotFound},
		{name: "delete bad index", method: http.MethodDelete, path: path + "/x", wantCode: http.StatusNotFound},
		{name: "clear day", method: http.MethodDelete, path: path, wantCode: http.StatusNoContent},
		{name: "clear empty day", method: http.MethodDelete, path: "/v1/timetables/10/A/tuesday", wantCode: http.StatusNoContent},
		{name: "cleared", path: path, wantCode: http.StatusOK, wantData: dayData(t, "Monday", nil)},
	})
}

func Test_timetableApi_template(t *testing.T) {
	d := setup(t)
	loginAsTeacher(t, d)

	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
		do(d.app, http.MethodGet, "/v1/timetables/10/A"))

	rec := do(d.app, http.MethodPost, "/v1/timetables/10/A/template")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(d.app, http.MethodGet, "/v1/timetables/10/A")
	require.Equal(t, http.StatusOK, rec.Code)
	var tt timetable.Timetable
	unmarchall(t, rec, &tt)
	assert.Equal(t, "10", tt.Class)
	assert.Equal(t, "A", tt.Section)
	assert.Equal(t, timetable.Template(), tt.Days)

	// other classes are untouched
	assert.Equal(t, http.StatusNotFound, do(d.app, http.MethodGet, "/v1/timetables/10/B").Code)

	assert.Equal(t, http.StatusNoContent, do(d.app, http.MethodDelete, "/v1/timetables/10/A").Code)
	assert.Equal(t, http.StatusNotFound, do(d.app, http.MethodGet, "/v1/timetables/10/A").Code)
}
