package domain

import "time"

// Platform identifies the client a user signed up from.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Platforms lists every accepted platform value.
var Platforms = []Platform{PlatformIOS, PlatformAndroid, PlatformWeb}

// SignupMethod is the channel a user registered with.
type SignupMethod string

const (
	SignupPhone       SignupMethod = "phone"
	SignupEmail       SignupMethod = "email"
	SignupSocialKakao SignupMethod = "social_kakao"
	SignupSocialApple SignupMethod = "social_apple"
)

// User is an immutable synthetic profile. ActivityLevel is the per-day
// probability (before weekend boost) that the user opens a session.
type User struct {
	UserID        string       `json:"user_id"`
	DeviceID      string       `json:"device_id"`
	Platform      Platform     `json:"platform"`
	DeviceModel   string       `json:"device_model"`
	OSVersion     string       `json:"os_version"`
	AppVersion    string       `json:"app_version"`
	SignupDate    time.Time    `json:"signup_date"`
	SignupMethod  SignupMethod `json:"signup_method"`
	ActivityLevel float64      `json:"activity_level"`
}

// CohortWeek returns the Monday (UTC midnight) of the user's signup week.
func (u User) CohortWeek() time.Time {
	return WeekStart(u.SignupDate)
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday on or before t, truncated to UTC midnight.
func WeekStart(t time.Time) time.Time {
	d := Day(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
