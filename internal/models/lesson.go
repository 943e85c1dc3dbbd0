package models

// Content types that can be attached to a lesson plan
const (
	ContentLesson       = "lesson"
	ContentExercise     = "exercise"
	ContentExerciseList = "exercise_list"
)

// LessonPlan groups lessons, exercises and exercise lists
type LessonPlan struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Lesson is a piece of teaching content
type Lesson struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	VideoURL string `json:"video_url,omitempty"`
}

// ContentAssociation maps a piece of content to the lesson plan that owns it
type ContentAssociation struct {
	ContentID    string `json:"content_id"`
	ContentType  string `json:"content_type"`
	LessonPlanID string `json:"lesson_plan_id"`
}

// ValidContentType reports whether t can be associated with a lesson plan
func ValidContentType(t string) bool {
	switch t {
	case ContentLesson, ContentExercise, ContentExerciseList:
		return true
	}
	return false
}
