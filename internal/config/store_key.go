package config

import (
	"fmt"
)

type StoreKeyStruct struct{}

func NewStoreKeyStruct() *StoreKeyStruct {
	return &StoreKeyStruct{}
}

// TokenPairKey returns the store key for the persisted access/refresh pair
func (r *StoreKeyStruct) TokenPairKey() string {
	return "auth:tokens"
}

// ProfileKey returns the store key for the cached user profile snapshot
func (r *StoreKeyStruct) ProfileKey() string {
	return "auth:profile"
}

// AttemptRecordKey returns the store key for the exam attempt record of one exam
func (r *StoreKeyStruct) AttemptRecordKey(examID string) string {
	return fmt.Sprintf("exam:%s:attempt", examID)
}

var StoreKey = NewStoreKeyStruct()
