package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// LessonAPI consults the course/subscription backend over its internal HTTP
// API. It implements both oracle lookups; the backend owns the actual
// business records.
type LessonAPI struct {
	baseURL      string
	serviceToken string
	client       *http.Client
}

var (
	_ LessonDirectory     = (*LessonAPI)(nil)
	_ SubscriptionChecker = (*LessonAPI)(nil)
)

// NewLessonAPI returns a client for the backend at baseURL, authenticating
// with serviceToken. httpClient may be nil for a default with a short timeout.
func NewLessonAPI(baseURL, serviceToken string, httpClient *http.Client) *LessonAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &LessonAPI{baseURL: baseURL, serviceToken: serviceToken, client: httpClient}
}

func (c *LessonAPI) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// Lesson implements LessonDirectory.
func (c *LessonAPI) Lesson(ctx context.Context, lessonID int64) (Lesson, bool, error) {
	var body struct {
		ID           int64  `json:"id"`
		CourseID     int64  `json:"course_id"`
		IsFree       bool   `json:"is_free"`
		TargetGender string `json:"target_gender"`
	}
	status, err := c.get(ctx, fmt.Sprintf("/internal/lessons/%d", lessonID), &body)
	if err != nil {
		return Lesson{}, false, err
	}
	switch status {
	case http.StatusOK:
		return Lesson{ID: body.ID, CourseID: body.CourseID, Free: body.IsFree, TargetGender: body.TargetGender}, true, nil
	case http.StatusNotFound:
		return Lesson{}, false, nil
	default:
		return Lesson{}, false, fmt.Errorf("lesson lookup: unexpected status %d", status)
	}
}

// HasActiveSubscription implements SubscriptionChecker.
func (c *LessonAPI) HasActiveSubscription(ctx context.Context, userID, courseID int64) (bool, error) {
	var body struct {
		Active bool `json:"active"`
	}
	q := url.Values{
		"user_id":   {strconv.FormatInt(userID, 10)},
		"course_id": {strconv.FormatInt(courseID, 10)},
	}
	status, err := c.get(ctx, "/internal/subscriptions/active?"+q.Encode(), &body)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("subscription lookup: unexpected status %d", status)
	}
	return body.Active, nil
}
