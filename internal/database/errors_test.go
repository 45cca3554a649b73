package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]struct {
		err       error
		class     ErrorClass
		retryable bool
	}{
		"serialization": {&pq.Error{Code: "40001"}, ErrorClassSerialization, true},
		"deadlock":      {&pq.Error{Code: "40P01"}, ErrorClassDeadlock, true},
		"admin restart": {fmt.Errorf("exec: %w", &pq.Error{Code: "57P01"}), ErrorClassTransient, true},
		"unique":        {&pq.Error{Code: "23505"}, ErrorClassPermanent, false},
		"no rows":       {sql.ErrNoRows, ErrorClassPermanent, false},
		"plain":         {errors.New("boom"), ErrorClassPermanent, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.class, ClassifyError(tc.err))
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
}
