package dalonline

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultBaseUrl = "https://dalonline.dal.ca"
	Subject        = "CSCI"
	District       = "100"
)

// CourseQuery identifies one course's timetable page, it cannot be
// changed after construction.
type CourseQuery struct {
	course string
	term   string
	url    string
}

// NewCourseQuery builds the query for `course` in `term`, an empty
// baseUrl means DefaultBaseUrl.
func NewCourseQuery(baseUrl, course, term string) (CourseQuery, error) {
	course = strings.TrimSpace(course)
	term = strings.TrimSpace(term)
	if course == "" {
		return CourseQuery{}, fmt.Errorf("course number must not be empty")
	}
	if term == "" {
		return CourseQuery{}, fmt.Errorf("term must not be empty")
	}
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return CourseQuery{
		course: course,
		term:   term,
		url:    ScheduleURL(baseUrl, course, term),
	}, nil
}

// ScheduleURL renders the timetable url, parameter order is fixed and
// each value goes through the query-string encoder.
func ScheduleURL(baseUrl, course, term string) string {
	return fmt.Sprintf(
		"%s/PROD/fysktime.P_DisplaySchedule?s_term=%s&s_subj=%s&s_numb=%s&s_district=%s",
		strings.TrimSuffix(baseUrl, "/"),
		url.QueryEscape(term),
		url.QueryEscape(Subject),
		url.QueryEscape(course),
		url.QueryEscape(District),
	)
}

func (q CourseQuery) Course() string { return q.course }
func (q CourseQuery) Term() string   { return q.term }
func (q CourseQuery) URL() string    { return q.url }

// Code is the subject and number, e.g. "CSCI3136".
func (q CourseQuery) Code() string {
	return Subject + q.course
}
