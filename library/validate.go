package library

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Publication year bounds accepted for a book.
const (
	MinYear = 1400
	MaxYear = 3000
)

// Validate applies the form rules callers must satisfy before handing a
// BookInput to the Store. The Store itself trusts its inputs.
func (in BookInput) Validate() error {
	in = in.normalized()
	var errs []FieldError
	errs = requireText(errs, "title", in.Title, 140)
	errs = requireText(errs, "author", in.Author, 120)
	errs = requireText(errs, "category", in.Category, 80)
	errs = limitText(errs, "isbn", in.ISBN, 32)
	errs = limitText(errs, "image_url", in.ImageURL, 255)
	if in.Year < MinYear || in.Year > MaxYear {
		errs = append(errs, FieldError{Field: "year", Message: "must be between 1400 and 3000"})
	}
	if in.Status != "" {
		if _, ok := ParseBookStatus(string(in.Status)); !ok {
			errs = append(errs, FieldError{Field: "status", Message: "is not a book status"})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Validate applies the member form rules.
func (in MemberInput) Validate() error {
	in = in.normalized()
	var errs []FieldError
	errs = requireText(errs, "full_name", in.FullName, 120)
	errs = requireText(errs, "email", in.Email, 160)
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			errs = append(errs, FieldError{Field: "email", Message: "is not an email address"})
		}
	}
	errs = limitText(errs, "phone", in.Phone, 40)
	if in.Status != "" {
		if _, ok := ParseMemberStatus(string(in.Status)); !ok {
			errs = append(errs, FieldError{Field: "status", Message: "is not a member status"})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func requireText(errs []FieldError, field, value string, max int) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(errs, FieldError{Field: field, Message: "is required"})
	}
	return limitText(errs, field, value, max)
}

func limitText(errs []FieldError, field, value string, max int) []FieldError {
	if utf8.RuneCountInString(value) > max {
		return append(errs, FieldError{Field: field, Message: "is too long"})
	}
	return errs
}
