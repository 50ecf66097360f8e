package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F},
	{0x1F300, 0x1F5FF},
	{0x1F680, 0x1F6FF},
	{0x1F1E0, 0x1F1FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x1F900, 0x1F9FF},
}

func ContainsEmoji(value string) bool {
	for _, r := range value {
		for _, span := range emojiRanges {
			if r >= span[0] && r <= span[1] {
				return true
			}
		}
	}
	return false
}

// NewValidator returns a validator that reports fields by their label (or json) tag
// and understands the noemoji tag.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("noemoji", func(fl validator.FieldLevel) bool {
		return !ContainsEmoji(fl.Field().String())
	})
	return validate
}

// ValidationMessages turns validator failures into user-facing sentences.
func ValidationMessages(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fieldMessage(fe))
	}
	return messages
}

func fieldMessage(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "noemoji":
		return label + " should not contain emojis"
	case "email":
		return "Invalid email format"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "oneof":
		return label + " is not supported"
	default:
		return label + " is invalid"
	}
}
