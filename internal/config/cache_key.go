package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentLoginKey(studentID int64) string {
	return fmt.Sprintf("login:%d", studentID)
}

// QuizSessionKey returns the cache key for a student's in-progress quiz
// session state (start time, answers, current position)
func (r *CacheKeyStruct) QuizSessionKey(quizID, studentID int64) string {
	return fmt.Sprintf("student:%d:quiz:%d:session", studentID, quizID)
}

// QuizPayloadKey returns the cache key for a quiz's student-facing payload
func (r *CacheKeyStruct) QuizPayloadKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:payload", quizID)
}

// QuizAnswerKey returns the cache key for a quiz's answer key hash
func (r *CacheKeyStruct) QuizAnswerKey(quizID int64) string {
	return fmt.Sprintf("quiz:%d:key", quizID)
}

var CacheKey = NewCacheKeyStruct()
