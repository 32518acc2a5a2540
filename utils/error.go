package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorDuplicateRequest marks a mutation that was already applied under the
// same idempotency key. Callers treat it as an already-succeeded outcome.
var ErrorDuplicateRequest = errors.New("duplicate request")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
