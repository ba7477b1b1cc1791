package dalonline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleURL(t *testing.T) {
	cases := []struct {
		course   string
		term     string
		expected string
	}{
		{
			course:   "3136",
			term:     "202010",
			expected: "https://dalonline.dal.ca/PROD/fysktime.P_DisplaySchedule?s_term=202010&s_subj=CSCI&s_numb=3136&s_district=100",
		},
		{
			course:   "1110",
			term:     "202020",
			expected: "https://dalonline.dal.ca/PROD/fysktime.P_DisplaySchedule?s_term=202020&s_subj=CSCI&s_numb=1110&s_district=100",
		},
		{
			course:   "31 36",
			term:     "2020&10",
			expected: "https://dalonline.dal.ca/PROD/fysktime.P_DisplaySchedule?s_term=2020%2610&s_subj=CSCI&s_numb=31+36&s_district=100",
		},
	}

	for _, test := range cases {
		q, err := NewCourseQuery("", test.course, test.term)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, test.expected, q.URL())
		require.Equal(t, test.expected, ScheduleURL(DefaultBaseUrl, test.course, test.term))
	}
}

func TestNewCourseQuery(t *testing.T) {
	q, err := NewCourseQuery("http://localhost:8080/", " 3136 ", "202010")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "3136", q.Course())
	require.Equal(t, "202010", q.Term())
	require.Equal(t, "CSCI3136", q.Code())
	require.Equal(t, "http://localhost:8080/PROD/fysktime.P_DisplaySchedule?s_term=202010&s_subj=CSCI&s_numb=3136&s_district=100", q.URL())

	_, err = NewCourseQuery("", "", "202010")
	require.Error(t, err)
	_, err = NewCourseQuery("", "3136", "  ")
	require.Error(t, err)
}
