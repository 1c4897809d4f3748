package api

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/familyscout/familyscout/internal/domain"
)

// SearchRequest is the inbound JSON body of POST /api/search.
type SearchRequest struct {
	City         string   `json:"city" validate:"required,min=2,max=100,cityname"`
	KidsAges     string   `json:"kidsAges" validate:"required,kidsages"`
	Availability string   `json:"availability" validate:"required,min=3,max=200"`
	MaxDistance  string   `json:"maxDistance" validate:"required,distance"`
	Preferences  string   `json:"preferences" validate:"omitempty,max=500"`
	EventTypes   []string `json:"eventTypes" validate:"omitempty,dive,eventtype"`
}

// FieldError is one validation failure, surfaced in the 400 response body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	cityRe     = regexp.MustCompile(`^[a-zA-Z\s,.-]+$`)
	ageCharsRe = regexp.MustCompile(`^[\d\s,.-]+$`)

	// Sanitization strips HTML brackets, then anything outside the
	// conservative allow-list of word characters and light punctuation.
	htmlRe    = regexp.MustCompile(`[<>]`)
	allowedRe = regexp.MustCompile(`[^\w\s,.-]`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json field names, not Go struct fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("cityname", func(fl validator.FieldLevel) bool {
		return cityRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	v.RegisterValidation("kidsages", func(fl validator.FieldLevel) bool {
		return validKidsAges(fl.Field().String())
	})
	v.RegisterValidation("distance", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
		return err == nil && n >= 1 && n <= 500
	})
	v.RegisterValidation("eventtype", func(fl validator.FieldLevel) bool {
		return domain.EventType(fl.Field().String()).Valid()
	})

	return v
}

// ValidateSearchRequest checks every field and returns all failures, so the
// client can surface them together.
func ValidateSearchRequest(req *SearchRequest) []FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldError{{Field: "request", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldName(fe),
			Message: fieldMessage(fe),
		})
	}
	return fieldErrors
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	// Slice elements report as "eventTypes[0]"; collapse to the field name.
	if i := strings.Index(name, "["); i > 0 {
		name = name[:i]
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	switch fieldName(fe) {
	case "city":
		switch fe.Tag() {
		case "required":
			return "City is required"
		case "min":
			return "City name must be at least 2 characters"
		case "max":
			return "City name must be less than 100 characters"
		default:
			return "City name can only contain letters, spaces, commas, periods, and hyphens"
		}
	case "kidsAges":
		if fe.Tag() == "required" {
			return "Kids ages are required"
		}
		return `Kids ages must be numbers between 1 and 18, separated by commas or ranges (e.g., "5, 8" or "3-7")`
	case "availability":
		switch fe.Tag() {
		case "required":
			return "Availability is required"
		case "min":
			return "Availability must be at least 3 characters"
		default:
			return "Availability must be less than 200 characters"
		}
	case "maxDistance":
		if fe.Tag() == "required" {
			return "Max distance is required"
		}
		return "Max distance must be a number between 1 and 500 miles"
	case "preferences":
		return "Preferences must be less than 500 characters"
	case "eventTypes":
		return "Event types must be one of: seasonal, exhibition, show, class, permanent"
	}
	return "Invalid value"
}

// validKidsAges accepts a single age ("5"), a comma list ("5, 8"), or a dash
// range ("3-7"). Every age must fall in [1, 18]; range start must not exceed
// the end.
func validKidsAges(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !ageCharsRe.MatchString(trimmed) {
		return false
	}

	var ages []int
	if strings.Contains(trimmed, "-") {
		parts := strings.SplitN(trimmed, "-", 2)
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil || start > end {
			return false
		}
		ages = []int{start, end}
	} else {
		for _, part := range strings.Split(trimmed, ",") {
			age, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return false
			}
			ages = append(ages, age)
		}
	}

	for _, age := range ages {
		if age < 1 || age > 18 {
			return false
		}
	}
	return true
}

// toCriteria produces sanitized search criteria from a validated request.
func (req *SearchRequest) toCriteria() domain.SearchCriteria {
	eventTypes := make([]domain.EventType, 0, len(req.EventTypes))
	for _, t := range req.EventTypes {
		eventTypes = append(eventTypes, domain.EventType(t))
	}

	return domain.SearchCriteria{
		City:         sanitize(req.City),
		KidsAges:     strings.TrimSpace(req.KidsAges),
		Availability: strings.TrimSpace(req.Availability),
		MaxDistance:  strings.TrimSpace(req.MaxDistance),
		Preferences:  strings.TrimSpace(req.Preferences),
		EventTypes:   eventTypes,
	}
}

// sanitize strips characters outside a conservative allow-list.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = htmlRe.ReplaceAllString(s, "")
	return allowedRe.ReplaceAllString(s, "")
}
