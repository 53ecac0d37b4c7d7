package delivery

import (
	"context"
	"testing"
)

type fakeLessonDirectory struct {
	lessons map[int64]Lesson
}

func (f *fakeLessonDirectory) Lesson(_ context.Context, id int64) (Lesson, bool, error) {
	l, ok := f.lessons[id]
	return l, ok, nil
}

type fakeSubscriptions struct {
	active map[[2]int64]bool // (userID, courseID)
}

func (f *fakeSubscriptions) HasActiveSubscription(_ context.Context, userID, courseID int64) (bool, error) {
	return f.active[[2]int64{userID, courseID}], nil
}

func newTestOracle() *SubscriptionOracle {
	lessons := &fakeLessonDirectory{lessons: map[int64]Lesson{
		1: {ID: 1, CourseID: 10, Free: true, TargetGender: GenderBoth},
		2: {ID: 2, CourseID: 10, Free: false, TargetGender: GenderBoth},
		3: {ID: 3, CourseID: 10, Free: true, TargetGender: GenderFemale},
	}}
	subs := &fakeSubscriptions{active: map[[2]int64]bool{
		{7, 10}: true,
	}}
	return NewSubscriptionOracle(lessons, subs)
}

func TestOracle_FreeLessonAllowed(t *testing.T) {
	o := newTestOracle()
	ok, err := o.CanAccess(context.Background(), User{ID: 99, Gender: GenderMale}, 1)
	if err != nil || !ok {
		t.Errorf("free lesson should be accessible, got ok=%v err=%v", ok, err)
	}
}

func TestOracle_SubscriptionRequired(t *testing.T) {
	o := newTestOracle()

	ok, err := o.CanAccess(context.Background(), User{ID: 7, Gender: GenderMale}, 2)
	if err != nil || !ok {
		t.Errorf("subscribed user should be allowed, got ok=%v err=%v", ok, err)
	}

	ok, err = o.CanAccess(context.Background(), User{ID: 8, Gender: GenderMale}, 2)
	if err != nil || ok {
		t.Errorf("unsubscribed user should be denied, got ok=%v err=%v", ok, err)
	}
}

func TestOracle_GenderTargetingExcludes(t *testing.T) {
	o := newTestOracle()

	ok, err := o.CanAccess(context.Background(), User{ID: 7, Gender: GenderMale}, 3)
	if err != nil || ok {
		t.Errorf("gender-targeted lesson should exclude the user even when free, got ok=%v err=%v", ok, err)
	}

	ok, err = o.CanAccess(context.Background(), User{ID: 7, Gender: GenderFemale}, 3)
	if err != nil || !ok {
		t.Errorf("matching gender should be allowed, got ok=%v err=%v", ok, err)
	}
}

func TestOracle_UnknownLessonDenied(t *testing.T) {
	o := newTestOracle()
	ok, err := o.CanAccess(context.Background(), User{ID: 7, Gender: GenderMale}, 404)
	if err != nil || ok {
		t.Errorf("unknown lesson should be denied, got ok=%v err=%v", ok, err)
	}
}
