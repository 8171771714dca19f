// Package profile edits the signed-in user's account: profile details,
// password and avatar.
package profile

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/zarlcorp/zclover/internal/form"
)

// UserInfoKey is the query key of the cached profile snapshot.
const UserInfoKey = "UserInfo"

// DefaultAvatar is shown when neither a local preview nor a remote avatar
// exists.
const DefaultAvatar = "avatar:default"

// DateLayout is the wire format of a date of birth.
const DateLayout = "02/01/2006"

// ErrDateOutOfRange is returned when a date of birth is not in the past.
var ErrDateOutOfRange = errors.New("date of birth must be in the past")

// Gender is the account gender.
type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
	Other  Gender = "OTHER"
)

// Genders lists the accepted genders in display order.
var Genders = []Gender{Male, Female, Other}

// Label returns the display name.
func (g Gender) Label() string {
	switch g {
	case Male:
		return "Male"
	case Female:
		return "Female"
	case Other:
		return "Other"
	}
	return string(g)
}

// Next cycles to the following gender.
func (g Gender) Next() Gender {
	for i, x := range Genders {
		if x == g {
			return Genders[(i+1)%len(Genders)]
		}
	}
	return Genders[0]
}

// Mode selects which form the profile page shows.
type Mode int

const (
	ModeInfo Mode = iota
	ModePassword
)

func (m Mode) String() string {
	if m == ModePassword {
		return "change password"
	}
	return "update info"
}

// Info form fields.
const (
	FieldFirstname = "firstname"
	FieldLastname  = "lastname"
	FieldPhoneNo   = "phoneNo"
	FieldGender    = "gender"
)

// Password form fields.
const (
	FieldEmail             = "email"
	FieldOldPassword       = "oldPassword"
	FieldNewPassword       = "newPassword"
	FieldRepeatNewPassword = "repeatNewPassword"
)

// Messages shown to the user.
const (
	MsgFirstnameRequired = "Please enter a firstname!"
	MsgLastnameRequired  = "Please enter a lastname!"
	MsgMinLength         = "Please enter a minimum of 2 characters!"
	MsgPhoneFormat       = "Please enter the correct phone number format!"
	MsgGenderRequired    = "Please choose a gender!"
	MsgEmailRequired     = "Please enter email!"
	MsgEmailFormat       = "Please enter the correct email format!"
	MsgPasswordRequired  = "Please enter password!"
	MsgDateOfBirth       = "Please choose the correct date of birth!"

	MsgInfoUpdated     = "Updated account information successfully!"
	MsgInfoFailed      = "Update information failed, please check again!"
	MsgPasswordChanged = "Password changed successfully!"
	MsgInvalidPassword = "Invalid password!"
	MsgPasswordFailed  = "Change password failed, please try again!"
	MsgAvatarUpdated   = "Updated avatar successfully!"
	MsgAvatarFailed    = "Update avatar failed, please try again!"
)

var phonePattern = regexp.MustCompile(`^\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})$`)

// ProfileEditRecord is the pending edit of the info form.
type ProfileEditRecord struct {
	Firstname   string
	Lastname    string
	PhoneNo     string
	DateOfBirth time.Time
	Gender      Gender
}

// PasswordChangeRecord is the pending edit of the password form.
type PasswordChangeRecord struct {
	Email             string
	OldPassword       string
	NewPassword       string
	RepeatNewPassword string
}

func newInfoForm() *form.Form {
	f := form.New("info")
	f.Register(FieldFirstname, "",
		form.Required(MsgFirstnameRequired),
		form.MinLength(2, MsgMinLength))
	f.Register(FieldLastname, "",
		form.Required(MsgLastnameRequired),
		form.MinLength(2, MsgMinLength))
	f.Register(FieldPhoneNo, "",
		form.Pattern(phonePattern, MsgPhoneFormat))
	f.Register(FieldGender, "",
		form.Required(MsgGenderRequired),
		form.OneOf(MsgGenderRequired, string(Male), string(Female), string(Other)))
	return f
}

func newPasswordForm() *form.Form {
	f := form.New("password")
	f.Register(FieldEmail, "",
		form.Required(MsgEmailRequired),
		form.Email(MsgEmailFormat))
	f.Register(FieldOldPassword, "", form.Required(MsgPasswordRequired))
	f.Register(FieldNewPassword, "", form.Required(MsgPasswordRequired))
	f.Register(FieldRepeatNewPassword, "", form.Required(MsgPasswordRequired))
	return f
}

// ParseDate reads a d/m/yyyy date of birth in the local time zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2/1/2006", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date of birth %q: %w", s, err)
	}
	return t, nil
}

// FormatDate writes a date of birth as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
