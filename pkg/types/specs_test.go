package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectClassSpec_Validate(t *testing.T) {
	ok := ObjectClassSpec{
		Name:      "Beacon",
		Archetype: "beacon",
		Attributes: []FieldSpec{
			{Name: "position", Sharing: SharingPublish, Converter: ConverterRef{Name: "position"}},
			{Name: "note", Sharing: SharingNone},
		},
	}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, (&ObjectClassSpec{}).Validate(), ErrEmptyClassName)

	bad := ObjectClassSpec{
		Name: "Beacon",
		Attributes: []FieldSpec{
			{Name: "position", Sharing: SharingPublish, Converter: ConverterRef{Name: "position"}},
			{Name: "position", Sharing: SharingPublish, Converter: ConverterRef{Name: "position"}},
			{Name: "", Sharing: SharingSubscribe},
			{Name: "label", Sharing: SharingSubscribe},
		},
	}
	err := bad.Validate()
	assert.ErrorIs(t, err, ErrDuplicateField)
	assert.ErrorIs(t, err, ErrEmptyFieldName)
	assert.ErrorIs(t, err, ErrMissingConverter)
}

func TestInteractionClassSpec_Validate(t *testing.T) {
	spec := InteractionClassSpec{
		Name:       "Ping",
		Sharing:    SharingPublish,
		Parameters: []FieldSpec{{Name: "who", Sharing: SharingPublish}},
	}
	assert.ErrorIs(t, spec.Validate(), ErrMissingConverter)

	spec.Parameters[0].Converter = ConverterRef{Name: "who"}
	assert.NoError(t, spec.Validate())
}

func TestFatal(t *testing.T) {
	assert.Nil(t, Fatal(nil))
	assert.False(t, IsFatal(ErrGateArmed))

	err := Fatal(ErrGateInterrupted)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrGateInterrupted)
	assert.Equal(t, "fatal: "+ErrGateInterrupted.Error(), err.Error())

	wrapped := fmt.Errorf("advance: %w", err)
	assert.True(t, IsFatal(wrapped))
	assert.Equal(t, wrapped, Fatal(wrapped))
	assert.True(t, errors.Is(Fatal(wrapped), ErrGateInterrupted))
}

func TestAttributeHandleSet(t *testing.T) {
	s := NewAttributeHandleSet(3, 1, 2)
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(4))
	assert.Equal(t, []AttributeHandle{1, 2, 3}, s.Sorted())
}
