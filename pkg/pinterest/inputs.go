package pinterest

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	errs "pinrunner/pkg/errors"
)

// Field limits enforced by the site's forms
const (
	maxTitle       = 100
	maxDescription = 500
	maxAltText     = 500
	maxComment     = 500
	maxBoardName   = 50
)

// PinInput describes a new pin. Exactly one of ImagePath and ImageURL is
// set; a remote image is staged locally for the upload and removed after.
type PinInput struct {
	ImagePath   string
	ImageURL    string
	Title       string
	Description string
	Link        string
	AltText     string
	// Board is the target board's name; empty or unknown uses the default
	Board string
}

// Validate checks the input before any navigation
func (in PinInput) Validate() error {
	var problems []error

	switch {
	case in.ImagePath == "" && in.ImageURL == "":
		problems = append(problems, errors.New("an image path or image URL is required"))
	case in.ImagePath != "" && in.ImageURL != "":
		problems = append(problems, errors.New("set an image path or an image URL, not both"))
	case in.ImagePath != "":
		info, err := os.Stat(in.ImagePath)
		switch {
		case err != nil:
			problems = append(problems, fmt.Errorf("image %s: %w", in.ImagePath, err))
		case info.IsDir():
			problems = append(problems, fmt.Errorf("image %s is a directory", in.ImagePath))
		}
	default:
		if err := checkHTTPURL(in.ImageURL); err != nil {
			problems = append(problems, fmt.Errorf("image URL: %w", err))
		}
	}

	problems = append(problems,
		checkLength("title", in.Title, maxTitle),
		checkLength("description", in.Description, maxDescription),
		checkLength("alt text", in.AltText, maxAltText),
	)
	if in.Link != "" {
		if err := checkHTTPURL(in.Link); err != nil {
			problems = append(problems, fmt.Errorf("link: %w", err))
		}
	}
	return validation(problems)
}

// BoardInput describes a new board
type BoardInput struct {
	Name        string
	Description string
	Secret      bool
}

// Validate checks the input before any navigation
func (in BoardInput) Validate() error {
	var problems []error
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, errors.New("board name is required"))
	}
	problems = append(problems,
		checkLength("board name", in.Name, maxBoardName),
		checkLength("description", in.Description, maxDescription),
	)
	return validation(problems)
}

func validateComment(text string) error {
	var problems []error
	if strings.TrimSpace(text) == "" {
		problems = append(problems, errors.New("comment text is required"))
	}
	problems = append(problems, checkLength("comment", text, maxComment))
	return validation(problems)
}

func checkLength(field, value string, max int) error {
	if n := utf8.RuneCountInString(value); n > max {
		return fmt.Errorf("%s is %d characters, the limit is %d", field, n, max)
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// validation folds problems into one ValidationError, or nil
func validation(problems []error) error {
	joined := errors.Join(problems...)
	if joined == nil {
		return nil
	}
	return errs.Wrap(errs.KindValidation, joined, "invalid input")
}

// ref folds a reference error into a validation step
func ref(err error, validate func() error) func() error {
	return func() error {
		if err != nil {
			return errs.Wrap(errs.KindValidation, err, "invalid reference")
		}
		if validate != nil {
			return validate()
		}
		return nil
	}
}
