package utils

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

const masked = "***MASKED***"

// secretEnvVars hold credentials whose literal values are scrubbed from
// messages wherever they appear.
var secretEnvVars = []string{"AZURE_OCR_API_KEY"}

var (
	// ?key=VALUE, &api_key=VALUE, apiKey=VALUE, api-key=VALUE
	queryKeyPattern = regexp.MustCompile(`([?&])(api[_\-]?[kK]ey|key)=([^&\s"]+)`)
	bearerPattern   = regexp.MustCompile(`Bearer\s+([A-Za-z0-9_\-\.]+)`)
	azureKeyPattern = regexp.MustCompile(`Ocp-Apim-Subscription-Key:\s*([^\s]+)`)
	// Google API keys and service account private keys
	googleKeyPattern  = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)
	privateKeyPattern = regexp.MustCompile(`("private_key"\s*:\s*")[^"]*(")`)
)

// MaskSensitiveData masks API keys and other credentials in s so it can be
// logged safely.
func MaskSensitiveData(s string) string {
	if s == "" {
		return s
	}

	s = queryKeyPattern.ReplaceAllString(s, `${1}${2}=`+masked)
	s = bearerPattern.ReplaceAllString(s, `Bearer `+masked)
	s = azureKeyPattern.ReplaceAllString(s, `Ocp-Apim-Subscription-Key: `+masked)
	s = googleKeyPattern.ReplaceAllString(s, masked)
	s = privateKeyPattern.ReplaceAllString(s, `${1}`+masked+`${2}`)

	for _, name := range secretEnvVars {
		// very short values would mask unrelated text
		if v := os.Getenv(name); len(v) >= 8 {
			s = strings.ReplaceAll(s, v, masked)
		}
	}

	return s
}

// MaskSensitiveError wraps an error and masks sensitive data when the error is converted to string
func MaskSensitiveError(err error) error {
	if err == nil {
		return nil
	}
	return &maskedError{err: err}
}

type maskedError struct {
	err error
}

func (e *maskedError) Error() string {
	return MaskSensitiveData(e.err.Error())
}

func (e *maskedError) Unwrap() error {
	return e.err
}

func ExitOnError(msg string, err error) {
	slog.Error(msg, "err", MaskSensitiveError(err))
	os.Exit(1)
}
