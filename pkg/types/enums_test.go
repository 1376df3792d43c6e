package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSharing_Intent(t *testing.T) {
	tests := []struct {
		sharing    Sharing
		publishes  bool
		subscribes bool
	}{
		{SharingNone, false, false},
		{SharingPublish, true, false},
		{SharingSubscribe, false, true},
		{SharingPublishSubscribe, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.sharing.String(), func(t *testing.T) {
			assert.Equal(t, tt.publishes, tt.sharing.Publishes())
			assert.Equal(t, tt.subscribes, tt.sharing.Subscribes())
		})
	}
}

func TestParseSharing(t *testing.T) {
	for in, want := range map[string]Sharing{
		"":                  SharingNone,
		"Neither":           SharingNone,
		"publish":           SharingPublish,
		"Subscribe":         SharingSubscribe,
		"PublishSubscribe":  SharingPublishSubscribe,
		"publish_subscribe": SharingPublishSubscribe,
	} {
		got, err := ParseSharing(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseSharing("broadcast")
	assert.ErrorIs(t, err, ErrInvalidSharing)
}

func TestSharing_String(t *testing.T) {
	assert.Equal(t, "PublishSubscribe", SharingPublishSubscribe.String())
	assert.Equal(t, "Sharing(9)", Sharing(9).String())
}

func TestSharing_YAML(t *testing.T) {
	var spec FieldSpec
	require.NoError(t, yaml.Unmarshal([]byte("name: position\nsharing: publish_subscribe\n"), &spec))
	assert.Equal(t, SharingPublishSubscribe, spec.Sharing)

	err := yaml.Unmarshal([]byte("name: position\nsharing: loud\n"), &spec)
	assert.Error(t, err)
}

func TestOrigin_String(t *testing.T) {
	assert.Equal(t, "local", OriginLocal.String())
	assert.Equal(t, "remote", OriginRemote.String())
	assert.Equal(t, "unknown", Origin(0).String())
	assert.Equal(t, "entity#42", EntityID(42).String())
}
