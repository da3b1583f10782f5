package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for one login session, keyed by the
// token's JTI so a user can stay signed in on several devices.
func (r *CacheKeyStruct) UserSessionKey(jti string) string {
	return fmt.Sprintf("login:%s", jti)
}

// QuizPayloadKey returns the cache key for a published quiz's public payload,
// keyed by slug since that is how players address it.
func (r *CacheKeyStruct) QuizPayloadKey(slug string) string {
	return fmt.Sprintf("quiz:%s:payload", slug)
}

// QuizDefinitionKey returns the cache key for a published quiz's full
// definition (points included), used server-side during playback.
func (r *CacheKeyStruct) QuizDefinitionKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:definition", quizID)
}

// PlaySessionKey returns the cache key for an in-flight play session.
func (r *CacheKeyStruct) PlaySessionKey(sessionID string) string {
	return fmt.Sprintf("play:%s:session", sessionID)
}

// QuizResponsesChannel returns the Redis PubSub channel name for a quiz's
// live response feed.
func (r *CacheKeyStruct) QuizResponsesChannel(quizID string) string {
	return fmt.Sprintf("quiz:%s:responses", quizID)
}

var CacheKey = NewCacheKeyStruct()
