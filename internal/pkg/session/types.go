// internal/pkg/session/types.go
package session

import (
	"fmt"
	"slices"
)

// Persisted keys.
const (
	KeyAuthToken    = "authToken"
	KeyUserType     = "userType"
	KeyRefreshToken = "refreshToken"
	KeyDeviceID     = "deviceId"
)

// User types stored under KeyUserType.
const (
	UserTypeUser           = "USER"
	UserTypeSignalProvider = "SIGNAL_PROVIDER"
)

// SessionKeys are the keys written on login and cleared on logout or expiry.
var SessionKeys = []string{KeyAuthToken, KeyUserType, KeyRefreshToken}

type Entry struct {
	Key   string
	Value string
}

// Pair is one row of a bulk read. Value is nil when the key is absent or
// could not be read.
type Pair struct {
	Key   string
	Value *string
}

func (p Pair) String() string {
	if p.Value == nil {
		return fmt.Sprintf("[%s <nil>]", p.Key)
	}
	return fmt.Sprintf("[%s %s]", p.Key, *p.Value)
}

// Result reports how a bulk operation went. Failed lists keys the backend
// rejected; Err is set when nothing succeeded.
type Result struct {
	Failed []string
	Err    error
}

func (r Result) OK() bool {
	return len(r.Failed) == 0 && r.Err == nil
}

// Degraded means some keys were handled and some were not.
func (r Result) Degraded() bool {
	return len(r.Failed) > 0 && r.Err == nil
}

// FailedKey reports whether key is among the failed keys.
func (r Result) FailedKey(key string) bool {
	return slices.Contains(r.Failed, key)
}

// Record is the typed view of the session keys.
type Record struct {
	AuthToken    string
	UserType     string
	RefreshToken string
}

func (r Record) HasToken() bool {
	return r.AuthToken != ""
}

// NormalizeUserType maps unknown or empty values to USER.
func NormalizeUserType(v string) string {
	if v == UserTypeSignalProvider {
		return UserTypeSignalProvider
	}
	return UserTypeUser
}
