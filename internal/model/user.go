package model

// User is a session principal.  Identity management is limited to a
// small directory of configured accounts; the booking engine only
// ever sees the ID, and the payment adapter receives the contact
// details.
//
// Fields:
//  ID           - stable user identifier, used as the JWT subject.
//  Email        - login name, lower-cased.
//  Name         - display name passed to the payment gateway.
//  Phone        - contact number passed to the payment gateway.
//  PasswordHash - bcrypt hash of the password.
type User struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash string
}

// Contact returns the contact info handed to payment providers.
func (u User) Contact() ContactInfo {
	return ContactInfo{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// ContactInfo is the user detail a payment provider needs to
// prefill its checkout.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"contact"`
}
