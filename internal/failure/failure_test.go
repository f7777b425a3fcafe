package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:   ConnectionError,
		Fields: []string{"user", "password"},
		Code:   "1045",
		Err:    errors.New("access denied"),
	}
	assert.Equal(t, "connection error [1045] (check user, password): access denied", err.Error())
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(DataIntegrityError, "table %q: duplicate ordinal position %d", "books", 2)
	wrapped := fmt.Errorf("assemble: %w", base)

	assert.Equal(t, DataIntegrityError, KindOf(wrapped))
	assert.True(t, Is(wrapped, DataIntegrityError))
	assert.False(t, Is(wrapped, QueryError))
	assert.False(t, Is(nil, Unknown))
}

func TestWithStage(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  Kind
		stage string
	}{
		{"unclassified", errors.New("boom"), Unknown, "export"},
		{"classified", New(QueryError, "rejected"), QueryError, "fetch"},
		{"already staged", &Error{Kind: QueryError, Stage: "build"}, QueryError, "build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithStage(tt.stage, tt.err)
			if tt.name == "already staged" {
				err = WithStage("fetch", tt.err)
			}
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.stage, StageOf(err))
		})
	}
	assert.NoError(t, WithStage("x", nil))
}

func TestWithStageDoesNotMutate(t *testing.T) {
	orig := &Error{Kind: ConnectionError, Fields: []string{"host"}}
	staged := WithStage("connect", orig)

	assert.Empty(t, orig.Stage)
	assert.Equal(t, "connect", StageOf(staged))
	assert.Equal(t, []string{"host"}, FieldsOf(staged))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(QueryError, nil))
	assert.Equal(t, QueryError, KindOf(Wrap(QueryError, errors.New("x"))))
}
