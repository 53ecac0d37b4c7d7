package delivery

import "context"

// Gender targeting values carried on a lesson.
const (
	GenderBoth   = "both"
	GenderMale   = "male"
	GenderFemale = "female"
)

// Lesson is the slice of lesson metadata the oracle needs. The course/lesson
// CRUD subsystem owns the full records.
type Lesson struct {
	ID           int64
	CourseID     int64
	Free         bool
	TargetGender string
}

// LessonDirectory looks up lesson metadata.
type LessonDirectory interface {
	Lesson(ctx context.Context, lessonID int64) (Lesson, bool, error)
}

// SubscriptionChecker answers whether a user holds an active, approved,
// unexpired subscription for a course.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, userID, courseID int64) (bool, error)
}

// Oracle decides whether a user may currently view a lesson's content. This
// is the only place business rules from the subscription subsystem enter the
// video core.
type Oracle interface {
	CanAccess(ctx context.Context, user User, lessonID int64) (bool, error)
}

// SubscriptionOracle is the standard Oracle: gender targeting excludes the
// user -> deny; free lesson -> allow; otherwise require an active approved
// subscription to the lesson's course.
type SubscriptionOracle struct {
	lessons LessonDirectory
	subs    SubscriptionChecker
}

var _ Oracle = (*SubscriptionOracle)(nil)

// NewSubscriptionOracle returns an Oracle over the given lookups.
func NewSubscriptionOracle(lessons LessonDirectory, subs SubscriptionChecker) *SubscriptionOracle {
	return &SubscriptionOracle{lessons: lessons, subs: subs}
}

// CanAccess implements Oracle.
func (o *SubscriptionOracle) CanAccess(ctx context.Context, user User, lessonID int64) (bool, error) {
	lesson, ok, err := o.lessons.Lesson(ctx, lessonID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if lesson.TargetGender != GenderBoth && lesson.TargetGender != user.Gender {
		return false, nil
	}
	if lesson.Free {
		return true, nil
	}
	return o.subs.HasActiveSubscription(ctx, user.ID, lesson.CourseID)
}
