package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidType(t *testing.T) {
	for _, typ := range []string{TypeCasual, TypeSick, TypeEarned, TypeUnpaid} {
		assert.True(t, ValidType(typ), typ)
	}
	assert.False(t, ValidType("sabbatical"))
	assert.False(t, ValidType(""))
}

func TestValidDecision(t *testing.T) {
	assert.True(t, ValidDecision(StatusApproved))
	assert.True(t, ValidDecision(StatusRejected))
	assert.False(t, ValidDecision(StatusPending))
	assert.False(t, ValidDecision("maybe"))
}
