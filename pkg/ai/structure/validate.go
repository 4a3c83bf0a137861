package structure

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ErrInvalidJSON is returned when a model reply holds no JSON object.
var ErrInvalidJSON = errors.New("model reply is not a JSON object")

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a value against its struct tags and flattens the field
// errors into one message.
func Validate(v interface{}) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("schema validation: %s", strings.Join(msgs, "; "))
}

// ExtractJSON trims markdown fences and prose around the outermost object.
func ExtractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", ErrInvalidJSON
	}
	return raw[start : end+1], nil
}

// Parse decodes and validates a structure document.
func Parse(raw string) (*Document, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ValidateReply is the fallback-chain validator for structure replies.
func ValidateReply(raw string) error {
	_, err := Parse(raw)
	return err
}
