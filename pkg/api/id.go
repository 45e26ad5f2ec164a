package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const answerIDPrefix = "ans_"

var answerIDPattern = regexp.MustCompile(`^ans_[0-9a-f]{24}$`)

// NewAnswerID generates a new answer ID with the "ans_" prefix followed by
// 24 hex characters taken from a random UUID.
func NewAnswerID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return answerIDPrefix + raw[:24]
}

// ValidateAnswerID checks whether the given string is a valid answer ID.
func ValidateAnswerID(id string) bool {
	return answerIDPattern.MatchString(id)
}
