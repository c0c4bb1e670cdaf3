package server

import (
	"fmt"
	"strings"
)

const (
	maxNameLength   = 20
	maxPromptLength = 140
	maxGuessLength  = 140
	maxCodeLength   = 12
)

func validateName(name string) (string, error) {
	return validateText("name", name, maxNameLength)
}

func validatePrompt(text string) (string, error) {
	return validateText("prompt", text, maxPromptLength)
}

func validateGuess(text string) (string, error) {
	return validateText("guess", text, maxGuessLength)
}

// validateGameCode normalizes a user-supplied join code. An empty result
// means the caller should generate one.
func validateGameCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", nil
	}
	if len(code) > maxCodeLength {
		return "", fmt.Errorf("game code must be %d characters or fewer", maxCodeLength)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("game code may only contain letters and digits")
		}
	}
	return code, nil
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}
