package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := NotFoundf("story %s", "s1").WithMeta("story_id", "s1")
	wrapped := Wrap(base, "load story")

	assert.Equal(t, CodeNotFound, wrapped.Code)
	assert.Equal(t, "s1", wrapped.Meta["story_id"])
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, stderrors.Is(wrapped, NotFound("anything")))
	assert.Equal(t, "load story", GetMessage(wrapped))
}

func TestWrapPlainIsInternal(t *testing.T) {
	err := Wrap(fmt.Errorf("disk on fire"), "save scene")
	assert.True(t, IsInternal(err))
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Nil(t, Wrap(nil, "x"))
}

func TestWrapWithCode(t *testing.T) {
	sentinel := stderrors.New("pair already integrated")
	err := WrapWithCode(sentinel, CodeFailedPrecondition, "integrate skills")
	assert.True(t, IsFailedPrecondition(err))
	assert.ErrorIs(t, err, sentinel)
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeOK},
		{"coded", InvalidArgument("bad"), CodeInvalidArgument},
		{"deadline", fmt.Errorf("llm: %w", context.DeadlineExceeded), CodeDeadlineExceeded},
		{"canceled", context.Canceled, CodeCanceled},
		{"plain", stderrors.New("x"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}
