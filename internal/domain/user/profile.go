package user

// Profile is the part of a user record the notifier cares about.
type Profile struct {
	UserID               string
	DisplayName          string
	ContactAddress       string // empty suppresses notifications
	NotificationsEnabled bool
}

// Greeting returns the name used to address the user in a digest.
func (p *Profile) Greeting() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID
}

// Notifiable reports whether the user has opted in and can be reached.
func (p *Profile) Notifiable() bool {
	return p.NotificationsEnabled && p.ContactAddress != ""
}
